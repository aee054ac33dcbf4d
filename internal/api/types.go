package api

// ChapterCount is the number of chapters; ordinals run 1..ChapterCount.
const ChapterCount = 114

// ValidChapter reports whether n is a chapter ordinal.
func ValidChapter(n int) bool {
	return n >= 1 && n <= ChapterCount
}

type Chapter struct {
	Number                 int    `json:"number"`
	Name                   string `json:"name"`
	EnglishName            string `json:"englishName"`
	EnglishNameTranslation string `json:"englishNameTranslation"`
	NumberOfAyahs          int    `json:"numberOfAyahs"`
	RevelationType         string `json:"revelationType"`
}

// Verse is one ayah. Number is global across chapters and addresses the
// audio file; NumberInSurah orders verses within their chapter.
type Verse struct {
	Number        int    `json:"number"`
	NumberInSurah int    `json:"numberInSurah"`
	Text          string `json:"text"`
	Juz           int    `json:"juz,omitempty"`
	Page          int    `json:"page,omitempty"`
	// Sajda is either false or an object in the API; only presence matters.
	Sajda sajda `json:"sajda,omitempty"`
}

type Edition struct {
	Identifier  string `json:"identifier"`
	Language    string `json:"language"`
	Name        string `json:"name"`
	EnglishName string `json:"englishName"`
	Format      string `json:"format"`
}

type LoadedChapter struct {
	Chapter
	Ayahs   []Verse `json:"ayahs"`
	Edition Edition `json:"edition"`
}

// Index returns the position of the verse with the given in-chapter number.
func (lc *LoadedChapter) Index(numberInSurah int) (int, bool) {
	if lc == nil {
		return -1, false
	}
	for i, v := range lc.Ayahs {
		if v.NumberInSurah == numberInSurah {
			return i, true
		}
	}
	return -1, false
}

type sajda bool

func (s *sajda) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "false", "null":
		*s = false
	default:
		*s = true
	}
	return nil
}
