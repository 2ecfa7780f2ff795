package tokenizer

const (
	approximateCounterName = "approximate"
	bytesPerToken          = 4
)

// ApproximateCounter estimates one token per four bytes of input.
type ApproximateCounter struct{}

// Name identifies the counter.
func (ApproximateCounter) Name() string {
	return approximateCounterName
}

// CountString never fails.
func (ApproximateCounter) CountString(input string) (int, error) {
	return Approximate(len(input)), nil
}

// Approximate returns the fallback token estimate for byteCount bytes.
func Approximate(byteCount int) int {
	return byteCount / bytesPerToken
}
