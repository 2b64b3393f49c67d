// Package rand generates random test data: package names, versions and file contents.
package rand

import (
	"bytes"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

var (
	onceSource  sync.Once
	rgen        *rand.Rand
	onceLetters sync.Once
	letters     []byte
	randMutex   sync.Mutex
)

func seed() {
	rgen = rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec
}

// pads 36 signs over the 256 values of a byte, "a" is slightly more frequent than other signs
func makeLetters() {
	letters = bytes.Repeat([]byte("abcdefghijklmnopqrstuvwxyz0123456789a"), 7)
}

// Bytes returns a random slice of bytes
func Bytes(n int) []byte {
	onceSource.Do(seed)
	buf := make([]byte, n)
	randMutex.Lock()
	_, _ = rgen.Read(buf)
	randMutex.Unlock()
	return buf
}

// LetterString returns a random string picked in the [0-9]|[a-z] range
func LetterString(n int) string {
	onceLetters.Do(makeLetters)
	buf := Bytes(n)
	for i, b := range buf {
		buf[i] = letters[b]
	}
	return string(buf)
}

// Intn returns a random number in [0,n)
func Intn(n int) int {
	onceSource.Do(seed)
	randMutex.Lock()
	defer randMutex.Unlock()
	return rgen.Intn(n)
}

// PackageName returns a random, valid package name. Names always start with a letter.
func PackageName(n int) string {
	if n < 1 {
		n = 1
	}
	return string(rune('a'+Intn(26))) + LetterString(n-1)
}

// Version returns a random pkgver-pkgrel version
func Version() string {
	return strconv.Itoa(Intn(10)) + "." + strconv.Itoa(Intn(100)) + "-" + strconv.Itoa(1+Intn(9))
}
