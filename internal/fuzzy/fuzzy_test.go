package fuzzy

import "testing"

func TestTokenSetRatioIdenticalStrings(t *testing.T) {
	if got := TokenSetRatio("Pink Floyd", "Pink Floyd"); got != 100 {
		t.Errorf("TokenSetRatio identical = %d, want 100", got)
	}
}

func TestTokenSetRatioBothEmpty(t *testing.T) {
	if got := TokenSetRatio("", ""); got != 100 {
		t.Errorf("TokenSetRatio(\"\", \"\") = %d, want 100", got)
	}
}

func TestTokenSetRatioOneEmpty(t *testing.T) {
	if got := TokenSetRatio("Pink Floyd", ""); got != 0 {
		t.Errorf("TokenSetRatio one empty = %d, want 0", got)
	}
}

func TestTokenSetRatioIgnoresTokenOrder(t *testing.T) {
	a := TokenSetRatio("Dark Side Moon", "Moon Dark Side")
	if a != 100 {
		t.Errorf("TokenSetRatio order-invariant = %d, want 100", a)
	}
}

func TestTokenSetRatioIgnoresDuplicates(t *testing.T) {
	a := TokenSetRatio("wish you were here here", "wish you were here")
	if a != 100 {
		t.Errorf("TokenSetRatio duplicate-invariant = %d, want 100", a)
	}
}

func TestTokenSetRatioPartialMatchScoresBetweenBounds(t *testing.T) {
	score := TokenSetRatio("Radiohead OK Computer", "Radiohead In Rainbows")
	if score <= 0 || score >= 100 {
		t.Errorf("TokenSetRatio partial match = %d, want strictly between 0 and 100", score)
	}
}

func TestTokenSetRatioTotallyDifferent(t *testing.T) {
	score := TokenSetRatio("Metallica Master Puppets", "Abba Dancing Queen")
	if score >= 60 {
		t.Errorf("TokenSetRatio unrelated strings = %d, want a low score", score)
	}
}
