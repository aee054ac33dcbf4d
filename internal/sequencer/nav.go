package sequencer

import "quran-tui/internal/api"

// NextChapterNumber wraps from the last chapter to the first.
func NextChapterNumber(n int) int {
	return n%api.ChapterCount + 1
}

// PreviousChapterNumber clamps at the first chapter. Unlike
// NextChapterNumber it does not wrap.
func PreviousChapterNumber(n int) int {
	if n <= 1 {
		return 1
	}
	return n - 1
}
