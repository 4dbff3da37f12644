package persistence

import (
	"encoding/json"
	"strings"

	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/util"
	bolt "go.etcd.io/bbolt"
)

const (
	MaxEventListLimit = 500
)

func (p *persistence) AppendEvent(level model.EventLevel, message string, context string) (result *model.Event, err error) {
	message = strings.TrimSpace(message)
	if len(message) <= 0 {
		return nil, invalid("message", "must not be empty")
	}
	if len(level) <= 0 {
		level = model.EventLevelInfo
	}

	err = p.update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketEvents))
		id, err := nextId(b)
		if err != nil {
			return err
		}
		result = &model.Event{
			Id:        id,
			Level:     model.EventLevel(strings.ToUpper(string(level))),
			Message:   message,
			Context:   context,
			CreatedAt: p.timestamp(),
		}
		return putJson(b, id, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListEvents returns the most recent events, newest first.
// The limit is coerced to 1..MaxEventListLimit.
func (p *persistence) ListEvents(limit int) ([]model.Event, error) {
	limit = util.Coerce(limit, 1, MaxEventListLimit)
	result := []model.Event{}

	err := p.view(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(BucketEvents)).Cursor()
		for k, v := c.Last(); k != nil && len(result) < limit; k, v = c.Prev() {
			event, err := decodeEvent(v)
			if err != nil {
				continue
			}
			result = append(result, event)
		}
		return nil
	})
	return result, err
}

// TrimEvents deletes the oldest events so that at most keep events remain
func (p *persistence) TrimEvents(keep int) (deleted int, err error) {
	err = p.update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketEvents))
		excess := b.Stats().KeyN - keep
		if excess <= 0 {
			return nil
		}

		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil && len(keys) < excess; k, _ = c.Next() {
			keys = append(keys, append([]byte{}, k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

func decodeEvent(data []byte) (event model.Event, err error) {
	err = json.Unmarshal(data, &event)
	return event, err
}
