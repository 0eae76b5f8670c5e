package db

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/atinyakov/GophStudy/internal/models"
)

// ReadDecks parses a JSON object mapping deck ids to their cards.
func ReadDecks(path string) (map[string][]models.StudyCard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read decks file: %w", err)
	}

	var decks map[string][]models.StudyCard
	if err := json.Unmarshal(data, &decks); err != nil {
		return nil, fmt.Errorf("parse decks file: %w", err)
	}
	for deckID, cards := range decks {
		for i, c := range cards {
			if c.ID == "" {
				return nil, fmt.Errorf("deck %s: card %d has no id", deckID, i)
			}
		}
	}
	return decks, nil
}
