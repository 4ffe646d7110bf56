package repository

// Split selects which part of the feature table a caller wants.
type Split string

const (
	SplitTrain Split = "train"
	SplitTest  Split = "test"
	SplitAll   Split = "all"
)

// IsValidSplit returns true if s is a supported split.
func IsValidSplit(s Split) bool {
	switch s {
	case SplitTrain, SplitTest, SplitAll:
		return true
	default:
		return false
	}
}

// DefaultSplit returns the default split.
func DefaultSplit() Split { return SplitAll }

// NormalizeSplit converts a raw string to a valid split (or the default).
func NormalizeSplit(s string) Split {
	if s == "" {
		return DefaultSplit()
	}
	sp := Split(s)
	if IsValidSplit(sp) {
		return sp
	}
	return DefaultSplit()
}
