package dynamo

import (
	"encoding/json"

	"github.com/hunterhub/hunter-ranking/internal/domain/model"
)

// The GraphQL schema stores metadata and game data as AWSJSON strings.

type scoreItem struct {
	model.ScoreRecord
	MetadataJSON string `dynamodbav:"metadata,omitempty"`
}

func toScoreItem(r model.ScoreRecord) scoreItem {
	return scoreItem{ScoreRecord: r, MetadataJSON: string(r.Metadata)}
}

func (i scoreItem) record() model.ScoreRecord {
	r := i.ScoreRecord
	if i.MetadataJSON != "" {
		r.Metadata = json.RawMessage(i.MetadataJSON)
	}
	return r
}

type historyItem struct {
	model.HistoryRecord
	GameDataJSON string `dynamodbav:"gameData"`
}

func toHistoryItem(r model.HistoryRecord) historyItem {
	return historyItem{HistoryRecord: r, GameDataJSON: string(r.GameData)}
}

func (i historyItem) record() model.HistoryRecord {
	r := i.HistoryRecord
	r.GameData = json.RawMessage(i.GameDataJSON)
	return r
}
