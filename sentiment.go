package noema

import (
	"math"
	"strings"
	"unicode"
)

// lexicon maps affect-bearing words to their valence weight in [-1, 1].
// Deliberately small: perception needs a fast, fully local signal, not a
// full sentiment model. Reasoners see the raw text anyway.
var lexicon = map[string]float64{
	// Positive.
	"love": 0.9, "loved": 0.9, "wonderful": 0.9, "amazing": 0.9,
	"great": 0.7, "good": 0.5, "happy": 0.7, "glad": 0.6,
	"thanks": 0.6, "thank": 0.6, "appreciate": 0.7, "excellent": 0.8,
	"fun": 0.6, "nice": 0.5, "perfect": 0.8, "beautiful": 0.8,
	"excited": 0.7, "awesome": 0.8, "helpful": 0.6, "enjoy": 0.6,
	"trust": 0.6, "safe": 0.5, "proud": 0.7, "better": 0.4,

	// Negative.
	"hate": -0.9, "terrible": -0.9, "awful": -0.9, "horrible": -0.9,
	"bad": -0.5, "sad": -0.6, "angry": -0.7, "furious": -0.9,
	"annoyed": -0.5, "annoying": -0.5, "upset": -0.6, "worried": -0.5,
	"scared": -0.7, "afraid": -0.6, "broken": -0.5, "wrong": -0.4,
	"useless": -0.7, "stupid": -0.7, "disappointed": -0.6, "worse": -0.5,
	"frustrated": -0.6, "frustrating": -0.6, "hurt": -0.6, "lost": -0.4,
}

// negators flip the valence of the next few affect-bearing words.
var negators = map[string]bool{
	"not": true, "no": true, "never": true, "dont": true, "cant": true,
	"wont": true, "isnt": true, "wasnt": true, "didnt": true, "hardly": true,
}

// intensifiers scale the next affect-bearing word.
var intensifiers = map[string]float64{
	"very": 1.3, "really": 1.3, "so": 1.2, "extremely": 1.5,
	"incredibly": 1.5, "totally": 1.3, "absolutely": 1.4, "slightly": 0.6,
	"somewhat": 0.7, "kinda": 0.7,
}

// negationWindow is how many tokens a negator reaches forward.
const negationWindow = 3

// PerceiveSignal derives an affect signal from raw input text using a
// lexical scan: no provider calls, deterministic, cheap. Valence is the
// weighted mean of matched terms; intensity grows with match density and
// surface emphasis (exclamations, shouting). Text with no affective content
// yields a zero-intensity signal, which leaves affect untouched.
func PerceiveSignal(text string) AffectSignal {
	tokens := tokenize(text)

	var (
		sum      float64
		weight   float64
		matches  int
		negUntil = -1
		boost    = 1.0
	)
	for i, tok := range tokens {
		if negators[tok] {
			negUntil = i + negationWindow
			continue
		}
		if f, ok := intensifiers[tok]; ok {
			boost = f
			continue
		}
		v, ok := lexicon[tok]
		if !ok {
			boost = 1.0
			continue
		}
		if i <= negUntil {
			v = -v * 0.8
		}
		v *= boost
		boost = 1.0

		sum += v
		weight += math.Abs(v)
		matches++
	}

	sig := AffectSignal{Source: "lexical"}
	if weight > 0 {
		sig.Valence = clampRange(sum/weight, -1, 1)
	}

	density := float64(matches) / (float64(matches) + 2)
	emphasis := emphasisScore(text)
	if matches > 0 || emphasis > 0 {
		sig.Intensity = clamp01(0.7*density + 0.3*emphasis)
	}

	if strings.Contains(text, "?") {
		sig.Bias = map[Dimension]float64{Curiosity: 0.8}
	}
	return sig
}

// emphasisScore measures surface intensity cues: exclamation marks and
// shouted (all-caps) words.
func emphasisScore(text string) float64 {
	score := 0.0
	score += 0.25 * float64(strings.Count(text, "!"))

	for _, w := range strings.Fields(text) {
		letters := 0
		upper := 0
		for _, r := range w {
			if unicode.IsLetter(r) {
				letters++
				if unicode.IsUpper(r) {
					upper++
				}
			}
		}
		if letters >= 3 && upper == letters {
			score += 0.3
		}
	}
	return clamp01(score)
}

// tokenize lowercases and strips punctuation, collapsing contractions so
// "don't" matches the negator "dont".
func tokenize(text string) []string {
	var tokens []string
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'':
			// drop apostrophes inside words
		default:
			if b.Len() > 0 {
				tokens = append(tokens, b.String())
				b.Reset()
			}
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

func clampRange(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
