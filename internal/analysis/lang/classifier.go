package lang

// Language identifies which of the two supported languages a text belongs to.
type Language string

const (
	Arabic  Language = "ar"
	English Language = "en"
)

// arabicRanges covers the Unicode blocks used by Arabic script, including
// presentation forms produced by some input methods.
var arabicRanges = [][2]rune{
	{0x0600, 0x06FF},
	{0x0750, 0x077F},
	{0x08A0, 0x08FF},
	{0xFB50, 0xFDFF},
	{0xFE70, 0xFEFF},
}

// Detect classifies text as Arabic or English. A single character inside the
// Arabic script ranges is enough to classify the whole text as Arabic; text
// with none is English. The choice is binary and deterministic because it
// drives persona routing and capture language binding.
func Detect(text string) Language {
	for _, r := range text {
		for _, rng := range arabicRanges {
			if r >= rng[0] && r <= rng[1] {
				return Arabic
			}
		}
	}
	return English
}
