package enumerate

import (
	"math/big"

	"github.com/pkg/errors"

	"forge/internal/core/domain"
)

var one = big.NewInt(1)

// Space is an exhaustive password search space over a charset and a length
// interval. Indices enumerate all non-empty strings in length-then-lex
// order: index 0 is the first single-character password; Skip positions the
// job at the first password of MinLen.
type Space struct {
	Charset []rune
	MinLen  int
	MaxLen  int
}

func NewSpace(charset string, minLen, maxLen int) (*Space, error) {
	if charset == "" {
		return nil, errors.Wrap(domain.ErrUnsupported, "enumerate: empty charset")
	}
	if minLen < 1 || maxLen < minLen {
		return nil, errors.Wrapf(domain.ErrUnsupported, "enumerate: invalid length range [%d,%d]", minLen, maxLen)
	}
	return &Space{Charset: []rune(charset), MinLen: minLen, MaxLen: maxLen}, nil
}

// Total counts the passwords with length in [MinLen, MaxLen].
func (s *Space) Total() *big.Int {
	base := big.NewInt(int64(len(s.Charset)))
	total := new(big.Int)
	for l := s.MinLen; l <= s.MaxLen; l++ {
		total.Add(total, new(big.Int).Exp(base, big.NewInt(int64(l)), nil))
	}
	return total
}

// Skip counts the strictly shorter passwords preceding the space, so that
// index Skip maps to the first password of length MinLen.
func (s *Space) Skip() *big.Int {
	base := big.NewInt(int64(len(s.Charset)))
	skip := new(big.Int)
	for l := 0; l < s.MinLen; l++ {
		skip.Add(skip, new(big.Int).Exp(base, big.NewInt(int64(l)), nil))
	}
	return skip.Sub(skip, one)
}

// Password maps an index to its password. Successive least-significant
// digits of the index (with the i = i/B - 1 step absorbing the shorter
// length classes) pick charset runes which are then reversed. Inverse of
// sum((c_k+1) * B^k).
func (s *Space) Password(index *big.Int) string {
	base := big.NewInt(int64(len(s.Charset)))
	i := new(big.Int).Set(index)
	digit := new(big.Int)

	var runes []rune
	for i.Sign() >= 0 {
		i.DivMod(i, base, digit)
		runes = append(runes, s.Charset[digit.Int64()])
		i.Sub(i, one)
	}

	for a, b := 0, len(runes)-1; a < b; a, b = a+1, b-1 {
		runes[a], runes[b] = runes[b], runes[a]
	}
	return string(runes)
}

// Range is a half-open index interval assigned to one worker.
type Range struct {
	Start *big.Int
	End   *big.Int
}

// Ranges splits the space into count contiguous index ranges of
// ceil(total/count); the last range is clamped to the end of the space.
// Together they cover [Skip, Skip+Total) exactly once.
func (s *Space) Ranges(count int) []Range {
	total := s.Total()
	skip := s.Skip()
	end := new(big.Int).Add(skip, total)

	// ceil(total / count)
	each := new(big.Int).Add(total, big.NewInt(int64(count-1)))
	each.Div(each, big.NewInt(int64(count)))

	ranges := make([]Range, 0, count)
	for i := 0; i < count; i++ {
		start := new(big.Int).Mul(each, big.NewInt(int64(i)))
		start.Add(start, skip)
		stop := new(big.Int).Add(start, each)
		if start.Cmp(end) > 0 {
			start.Set(end)
		}
		if stop.Cmp(end) > 0 {
			stop.Set(end)
		}
		ranges = append(ranges, Range{Start: start, End: stop})
	}
	return ranges
}
