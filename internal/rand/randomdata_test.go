package rand

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oneconcern/pacbox/pkg/model"
)

func TestLetterString(t *testing.T) {
	s := LetterString(20)
	assert.Len(t, s, 20)
	assert.Regexp(t, regexp.MustCompile(`^[a-z0-9]{20}$`), s)
}

func TestPackageName(t *testing.T) {
	for i := 0; i < 50; i++ {
		name := PackageName(1 + i%12)
		assert.Regexp(t, regexp.MustCompile(`^[a-z][a-z0-9]*$`), name)
		assert.Len(t, name, 1+i%12)
	}
	assert.Len(t, PackageName(0), 1)
}

func TestVersion(t *testing.T) {
	for i := 0; i < 50; i++ {
		v := model.ParseVersion(Version())
		assert.NotEmpty(t, v.Version)
		assert.NotEmpty(t, v.Release)
		assert.Empty(t, v.Epoch)
	}
}

func benchmarkBytes(b *testing.B, size int) {
	for n := 0; n < b.N; n++ {
		_ = Bytes(size)
	}
}

func BenchmarkBytes20(b *testing.B)   { benchmarkBytes(b, 20) }
func BenchmarkBytes1000(b *testing.B) { benchmarkBytes(b, 1000) }

func BenchmarkLetterString20(b *testing.B) {
	for n := 0; n < b.N; n++ {
		_ = LetterString(20)
	}
}
