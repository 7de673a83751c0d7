package lobby

import "math/rand/v2"

const (
	// CodeLength is the number of characters in a generated lobby code.
	CodeLength = 8
	// CodeAlphabet holds the characters codes are drawn from.
	CodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// CodeGenerator produces candidate lobby codes. Uniqueness is enforced by the
// store, not the generator.
type CodeGenerator interface {
	Generate() string
}

// CodeGeneratorFunc adapts a plain function to CodeGenerator.
type CodeGeneratorFunc func() string

func (f CodeGeneratorFunc) Generate() string { return f() }

// RandomCodeGenerator draws each character uniformly from CodeAlphabet.
// The top-level math/rand/v2 source is safe for concurrent use.
type RandomCodeGenerator struct{}

func (RandomCodeGenerator) Generate() string {
	buf := make([]byte, CodeLength)
	for i := range buf {
		buf[i] = CodeAlphabet[rand.IntN(len(CodeAlphabet))]
	}
	return string(buf)
}
