package persistence

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/ui"
	"github.com/markusressel/fan2pwm/internal/util"
	bolt "go.etcd.io/bbolt"
)

const (
	BucketSensors     = "sensors"
	BucketCurves      = "curves"
	BucketCurvePoints = "curvePoints"
	BucketSettings    = "settings"
	BucketEvents      = "events"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotOpen       = errors.New("database is not open")
)

// ValidationError is returned when a write is rejected because of invalid input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field string, format string, a ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, a...)}
}

type SensorUpdate struct {
	Name    *string `json:"name,omitempty"`
	Path    *string `json:"path,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}

type PointUpdate struct {
	TempC       *float64 `json:"temp_c,omitempty"`
	DutyPercent *int     `json:"duty_percent,omitempty"`
}

type Persistence interface {
	Init() error
	Close() error

	ListSensors() ([]model.Sensor, error)
	GetSensor(id int64) (*model.Sensor, error)
	CreateSensor(name string, kind string, path string, enabled bool) (*model.Sensor, error)
	UpdateSensor(id int64, update SensorUpdate) (*model.Sensor, error)
	DeleteSensor(id int64) (*model.Sensor, error)

	ListCurves(sensorId int64) ([]model.Curve, error)
	GetCurve(id int64) (*model.Curve, error)
	GetActiveCurve(sensorId int64) (*model.Curve, error)
	CreateCurve(sensorId int64, name string) (*model.Curve, error)
	RenameCurve(id int64, name string) (*model.Curve, error)
	ActivateCurve(id int64) (*model.Curve, error)
	DeleteCurve(id int64) (*model.Curve, error)

	ListCurvePoints(curveId int64) ([]model.CurvePoint, error)
	CreateCurvePoint(curveId int64, tempC float64, dutyPercent int) (*model.CurvePoint, error)
	ReplaceCurvePoints(curveId int64, points []model.CurvePoint) ([]model.CurvePoint, error)
	UpdateCurvePoint(id int64, update PointUpdate) (*model.CurvePoint, error)
	DeleteCurvePoint(id int64) (*model.CurvePoint, error)

	SeedSettings(defaults map[string]string) error
	GetAllSettings() (map[string]string, error)
	GetSetting(key string) (string, bool, error)
	UpdateSettings(values map[string]string) (map[string]string, error)

	AppendEvent(level model.EventLevel, message string, context string) (*model.Event, error)
	ListEvents(limit int) ([]model.Event, error)
	TrimEvents(keep int) (int, error)

	Seed(thermalZonePath string) ([]model.Sensor, error)
	Backup(w io.Writer) (int64, error)
}

type persistence struct {
	dbPath string
	now    func() time.Time
	db     *bolt.DB
}

func NewPersistence(dbPath string, clock func() time.Time) Persistence {
	if clock == nil {
		clock = time.Now
	}
	p := &persistence{
		dbPath: dbPath,
		now:    clock,
	}
	return p
}

// Init creates the parent directory of the database if necessary, opens it and
// makes sure all buckets exist.
func (p *persistence) Init() (err error) {
	// get parent path of dbPath
	parentDir := filepath.Dir(p.dbPath)
	_, err = os.Stat(parentDir)
	if errors.Is(err, os.ErrNotExist) {
		// create directory
		ui.Info("Creating directory for db: %s", parentDir)
		err = os.MkdirAll(parentDir, 0755)
		if err != nil {
			return err
		}
	}

	db, err := bolt.Open(p.dbPath, 0600, &bolt.Options{Timeout: 1 * time.Minute})
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{BucketSensors, BucketCurves, BucketCurvePoints, BucketSettings, BucketEvents} {
			_, err := tx.CreateBucketIfNotExists([]byte(name))
			if err != nil {
				return fmt.Errorf("create bucket %s: %s", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return err
	}

	p.db = db
	return nil
}

func (p *persistence) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

func (p *persistence) view(fn func(tx *bolt.Tx) error) error {
	if p.db == nil {
		return ErrNotOpen
	}
	return p.db.View(fn)
}

func (p *persistence) update(fn func(tx *bolt.Tx) error) error {
	if p.db == nil {
		return ErrNotOpen
	}
	return p.db.Update(fn)
}

func (p *persistence) timestamp() float64 {
	return util.UnixSeconds(p.now())
}

// Backup writes a consistent copy of the whole database to w
func (p *persistence) Backup(w io.Writer) (size int64, err error) {
	err = p.view(func(tx *bolt.Tx) error {
		size, err = tx.WriteTo(w)
		return err
	})
	return size, err
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func nextId(b *bolt.Bucket) (int64, error) {
	id, err := b.NextSequence()
	return int64(id), err
}

func putJson(b *bolt.Bucket, id int64, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.Put(itob(id), data)
}

func getJson[T any](b *bolt.Bucket, id int64) (*T, error) {
	v := b.Get(itob(id))
	if v == nil {
		return nil, ErrNotFound
	}
	var result T
	if err := json.Unmarshal(v, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// listJson returns all entries of the bucket that match the given filter.
// Entries that can not be unmarshalled are skipped.
func listJson[T any](b *bolt.Bucket, filter func(T) bool) ([]T, error) {
	result := []T{}
	err := b.ForEach(func(k, v []byte) error {
		var entry T
		if err := json.Unmarshal(v, &entry); err != nil {
			ui.Warning("Unable to unmarshal stored entry %x: %v", k, err)
			return nil
		}
		if filter == nil || filter(entry) {
			result = append(result, entry)
		}
		return nil
	})
	return result, err
}
