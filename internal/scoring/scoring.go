package scoring

// Level is a difficulty tier slug.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelExpert       Level = "expert"
)

// Levels returns all levels in order from easiest to hardest.
func Levels() []Level {
	return []Level{LevelBeginner, LevelIntermediate, LevelExpert}
}

// DisplayName returns a human-readable label for the level.
func (l Level) DisplayName() string {
	switch l {
	case LevelBeginner:
		return "Beginner"
	case LevelIntermediate:
		return "Intermediate"
	case LevelExpert:
		return "Expert"
	default:
		return string(l)
	}
}

type points struct {
	correct   int
	incorrect int
}

var scoreTable = map[Level]points{
	LevelBeginner:     {correct: 10, incorrect: -5},
	LevelIntermediate: {correct: 20, incorrect: -10},
	LevelExpert:       {correct: 30, incorrect: -15},
}

// ScoreDelta returns the points awarded (or deducted) for one answer at
// the given level. Unknown levels score as beginner.
func ScoreDelta(level Level, correct bool) int {
	p, ok := scoreTable[level]
	if !ok {
		p = scoreTable[LevelBeginner]
	}
	if correct {
		return p.correct
	}
	return p.incorrect
}

// ClampLevel maps a raw slug onto a known level. Anything other than
// intermediate or expert becomes beginner.
func ClampLevel(raw string) Level {
	switch Level(raw) {
	case LevelIntermediate, LevelExpert:
		return Level(raw)
	default:
		return LevelBeginner
	}
}
