package persistence

import (
	"strings"

	"github.com/markusressel/fan2pwm/internal/settings"
	bolt "go.etcd.io/bbolt"
)

// SeedSettings stores the given defaults without overwriting existing values
func (p *persistence) SeedSettings(defaults map[string]string) error {
	return p.update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketSettings))
		for key, value := range defaults {
			if b.Get([]byte(key)) != nil {
				continue
			}
			if err := b.Put([]byte(key), []byte(value)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetAllSettings returns the raw value of every stored setting
func (p *persistence) GetAllSettings() (map[string]string, error) {
	result := map[string]string{}
	err := p.view(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketSettings)).ForEach(func(k, v []byte) error {
			result[string(k)] = string(v)
			return nil
		})
	})
	return result, err
}

func (p *persistence) GetSetting(key string) (value string, ok bool, err error) {
	err = p.view(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(BucketSettings)).Get([]byte(key))
		if v != nil {
			value = string(v)
			ok = true
		}
		return nil
	})
	return value, ok, err
}

// UpdateSettings validates and stores all given values. If any value is invalid,
// nothing is written.
func (p *persistence) UpdateSettings(values map[string]string) (map[string]string, error) {
	normalized := make(map[string]string, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if err := settings.Validate(key, value); err != nil {
			return nil, invalid(key, "%v", err)
		}
		normalized[key] = value
	}

	err := p.update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketSettings))
		for key, value := range normalized {
			if err := b.Put([]byte(key), []byte(value)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.GetAllSettings()
}
