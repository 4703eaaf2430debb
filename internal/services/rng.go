package services

import (
	"crypto/rand"
	"log"
)

// OutcomeSource produces the chance outcomes for wagers. Draws happen
// strictly server-side, after funds are reserved; nothing the client sends
// can influence them, and a client-supplied "seed" is treated as a fraud
// signal upstream, never forwarded here.
type OutcomeSource interface {
	DrawDice() (int, int)
	DrawCup() int
}

// CryptoSource draws from crypto/rand with rejection sampling so every face
// is exactly equally likely.
type CryptoSource struct{}

func NewCryptoSource() *CryptoSource {
	return &CryptoSource{}
}

func (s *CryptoSource) DrawDice() (int, int) {
	return rollDie(), rollDie()
}

func (s *CryptoSource) DrawCup() int {
	// 255 is the largest multiple of 3 <= 256, so bytes below it map
	// uniformly onto {0,1,2}.
	return int(randomByteBelow(255)) % 3
}

func rollDie() int {
	// 252 = 42*6; rejecting bytes >= 252 keeps the modulo unbiased.
	return int(randomByteBelow(252))%6 + 1
}

func randomByteBelow(limit byte) byte {
	buf := make([]byte, 1)
	for {
		if _, err := rand.Read(buf); err != nil {
			// crypto/rand failing means the process can't safely run games
			log.Fatalf("crypto/rand unavailable: %v", err)
		}
		if buf[0] < limit {
			return buf[0]
		}
	}
}
