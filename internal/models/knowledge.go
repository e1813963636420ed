package models

import "time"

// PatternSeparator splits the alternatives stored in a knowledge entry's pattern field.
const PatternSeparator = "|"

// KnowledgeEntry maps a set of lowercase question patterns to a canned answer.
// Seed entries use broad keyword alternatives ("hours|open"); learned entries use the
// exact normalized question text that was escalated.
type KnowledgeEntry struct {
	ID              string    `bson:"-" json:"id"`
	QuestionPattern string    `bson:"questionPattern" json:"questionPattern"`
	Answer          string    `bson:"answer" json:"answer"`
	LearnedAt       time.Time `bson:"learnedAt" json:"learnedAt"`
}

// SeedKnowledge is the on-disk shape of the built-in knowledge list.
type SeedKnowledge struct {
	Entries []SeedEntry `yaml:"entries"`
}

// SeedEntry is one seeded pattern set.
type SeedEntry struct {
	Patterns string `yaml:"patterns"`
	Answer   string `yaml:"answer"`
}
