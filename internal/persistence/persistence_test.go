package persistence

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func newTestPersistence(t *testing.T) Persistence {
	dbPath := filepath.Join(t.TempDir(), "data", "fan2pwm.db")
	clock := func() time.Time {
		return time.Unix(1700000000, 0)
	}
	p := NewPersistence(dbPath, clock)
	require.NoError(t, p.Init())
	t.Cleanup(func() {
		_ = p.Close()
	})
	return p
}

func createSensorSource(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "temp")
	require.NoError(t, os.WriteFile(path, []byte("45000"), 0644))
	return path
}

func createTestSensor(t *testing.T, p Persistence, name string) *model.Sensor {
	sensor, err := p.CreateSensor(name, "thermal_zone", createSensorSource(t), true)
	require.NoError(t, err)
	return sensor
}

func TestPersistence_Init_CreatesDirectory(t *testing.T) {
	// GIVEN
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "fan2pwm.db")
	p := NewPersistence(dbPath, nil)

	// WHEN
	err := p.Init()

	// THEN
	require.NoError(t, err)
	assert.NoError(t, p.Close())
	assert.FileExists(t, dbPath)
}

func TestPersistence_NotOpen(t *testing.T) {
	// GIVEN
	p := NewPersistence(filepath.Join(t.TempDir(), "fan2pwm.db"), nil)

	// WHEN
	_, err := p.ListSensors()

	// THEN
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestPersistence_CreateSensor(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	path := createSensorSource(t)

	// WHEN
	sensor, err := p.CreateSensor("  cpu ", "Thermal_Zone", path, true)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, int64(1), sensor.Id)
	assert.Equal(t, "cpu", sensor.Name)
	assert.Equal(t, model.SensorKindThermalZone, sensor.Kind)
	assert.Equal(t, path, sensor.Path)
	assert.True(t, sensor.Enabled)
	assert.Equal(t, 1700000000.0, sensor.CreatedAt)

	stored, err := p.GetSensor(sensor.Id)
	require.NoError(t, err)
	assert.Equal(t, sensor, stored)
}

func TestPersistence_CreateSensor_Validation(t *testing.T) {
	p := newTestPersistence(t)
	path := createSensorSource(t)

	tests := []struct {
		name  string
		input [3]string
		field string
	}{
		{"empty name", [3]string{" ", "hwmon", path}, "name"},
		{"unknown type", [3]string{"a", "gpu", path}, "type"},
		{"relative path", [3]string{"a", "hwmon", "temp"}, "path"},
		{"missing path", [3]string{"a", "hwmon", path + ".missing"}, "path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.CreateSensor(tt.input[0], tt.input[1], tt.input[2], true)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestPersistence_CreateSensor_DuplicateName(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	createTestSensor(t, p, "cpu")

	// WHEN
	_, err := p.CreateSensor("cpu", "hwmon", createSensorSource(t), true)

	// THEN
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestPersistence_ListSensors_OrderedByName(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	createTestSensor(t, p, "zeta")
	createTestSensor(t, p, "alpha")

	// WHEN
	sensors, err := p.ListSensors()

	// THEN
	require.NoError(t, err)
	require.Len(t, sensors, 2)
	assert.Equal(t, "alpha", sensors[0].Name)
	assert.Equal(t, "zeta", sensors[1].Name)
}

func TestPersistence_UpdateSensor(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	sensor := createTestSensor(t, p, "cpu")
	name := "soc"
	enabled := false

	// WHEN
	updated, err := p.UpdateSensor(sensor.Id, SensorUpdate{Name: &name, Enabled: &enabled})

	// THEN
	require.NoError(t, err)
	assert.Equal(t, "soc", updated.Name)
	assert.False(t, updated.Enabled)
	assert.Equal(t, sensor.Path, updated.Path)
}

func TestPersistence_UpdateSensor_NameConflict(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	createTestSensor(t, p, "cpu")
	other := createTestSensor(t, p, "board")
	name := "cpu"

	// WHEN
	_, err := p.UpdateSensor(other.Id, SensorUpdate{Name: &name})

	// THEN
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestPersistence_UpdateSensor_NotFound(t *testing.T) {
	p := newTestPersistence(t)
	_, err := p.UpdateSensor(42, SensorUpdate{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersistence_DeleteSensor_Cascades(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	sensor := createTestSensor(t, p, "cpu")
	curve, err := p.CreateCurve(sensor.Id, "quiet")
	require.NoError(t, err)
	_, err = p.CreateCurvePoint(curve.Id, 40, 20)
	require.NoError(t, err)

	// WHEN
	deleted, err := p.DeleteSensor(sensor.Id)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, sensor.Id, deleted.Id)
	_, err = p.GetSensor(sensor.Id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = p.GetCurve(curve.Id)
	assert.ErrorIs(t, err, ErrNotFound)
	points, err := p.ListCurvePoints(curve.Id)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestPersistence_CreateCurve(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	sensor := createTestSensor(t, p, "cpu")

	// WHEN
	curve, err := p.CreateCurve(sensor.Id, "quiet")

	// THEN
	require.NoError(t, err)
	assert.Equal(t, sensor.Id, curve.SensorId)
	assert.Equal(t, "quiet", curve.Name)
	assert.False(t, curve.IsActive)
}

func TestPersistence_CreateCurve_UnknownSensor(t *testing.T) {
	p := newTestPersistence(t)
	_, err := p.CreateCurve(42, "quiet")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersistence_CreateCurve_DuplicateName(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	sensor := createTestSensor(t, p, "cpu")
	other := createTestSensor(t, p, "board")
	_, err := p.CreateCurve(sensor.Id, "quiet")
	require.NoError(t, err)

	// WHEN
	_, duplicateErr := p.CreateCurve(sensor.Id, "quiet")
	_, otherSensorErr := p.CreateCurve(other.Id, "quiet")

	// THEN
	assert.ErrorIs(t, duplicateErr, ErrAlreadyExists)
	assert.NoError(t, otherSensorErr)
}

func TestPersistence_ActivateCurve_OnlyOneActive(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	sensor := createTestSensor(t, p, "cpu")
	other := createTestSensor(t, p, "board")
	quiet, _ := p.CreateCurve(sensor.Id, "quiet")
	loud, _ := p.CreateCurve(sensor.Id, "loud")
	otherCurve, _ := p.CreateCurve(other.Id, "default")
	_, err := p.ActivateCurve(otherCurve.Id)
	require.NoError(t, err)

	// WHEN
	_, err = p.ActivateCurve(quiet.Id)
	require.NoError(t, err)
	_, err = p.ActivateCurve(loud.Id)
	require.NoError(t, err)

	// THEN
	active, err := p.GetActiveCurve(sensor.Id)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, loud.Id, active.Id)

	curves, err := p.ListCurves(sensor.Id)
	require.NoError(t, err)
	activeCount := 0
	for _, c := range curves {
		if c.IsActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)

	// other sensors are not affected
	otherActive, err := p.GetActiveCurve(other.Id)
	require.NoError(t, err)
	require.NotNil(t, otherActive)
	assert.Equal(t, otherCurve.Id, otherActive.Id)
}

func TestPersistence_GetActiveCurve_None(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	sensor := createTestSensor(t, p, "cpu")
	_, _ = p.CreateCurve(sensor.Id, "quiet")

	// WHEN
	active, err := p.GetActiveCurve(sensor.Id)

	// THEN
	assert.NoError(t, err)
	assert.Nil(t, active)
}

func TestPersistence_RenameCurve(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	sensor := createTestSensor(t, p, "cpu")
	quiet, _ := p.CreateCurve(sensor.Id, "quiet")
	_, _ = p.CreateCurve(sensor.Id, "loud")

	// WHEN
	renamed, err := p.RenameCurve(quiet.Id, "silent")
	_, conflictErr := p.RenameCurve(quiet.Id, "loud")
	_, emptyErr := p.RenameCurve(quiet.Id, "")

	// THEN
	require.NoError(t, err)
	assert.Equal(t, "silent", renamed.Name)
	assert.ErrorIs(t, conflictErr, ErrAlreadyExists)
	var validationErr *ValidationError
	assert.ErrorAs(t, emptyErr, &validationErr)
}

func TestPersistence_CurvePoints(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	sensor := createTestSensor(t, p, "cpu")
	curve, _ := p.CreateCurve(sensor.Id, "quiet")

	// WHEN
	_, err := p.CreateCurvePoint(curve.Id, 80, 100)
	require.NoError(t, err)
	_, err = p.CreateCurvePoint(curve.Id, 20.04, 0)
	require.NoError(t, err)
	_, err = p.CreateCurvePoint(curve.Id, 50, 50)
	require.NoError(t, err)

	// THEN
	points, err := p.ListCurvePoints(curve.Id)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 20.0, points[0].TempC)
	assert.Equal(t, 50.0, points[1].TempC)
	assert.Equal(t, 80.0, points[2].TempC)
}

func TestPersistence_CreateCurvePoint_ReplacesSameTemperature(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	sensor := createTestSensor(t, p, "cpu")
	curve, _ := p.CreateCurve(sensor.Id, "quiet")
	first, _ := p.CreateCurvePoint(curve.Id, 50, 40)

	// WHEN
	second, err := p.CreateCurvePoint(curve.Id, 50.01, 60)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, first.Id, second.Id)
	points, _ := p.ListCurvePoints(curve.Id)
	require.Len(t, points, 1)
	assert.Equal(t, 60, points[0].DutyPercent)
}

func TestPersistence_CreateCurvePoint_Validation(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	sensor := createTestSensor(t, p, "cpu")
	curve, _ := p.CreateCurve(sensor.Id, "quiet")

	// WHEN
	_, dutyErr := p.CreateCurvePoint(curve.Id, 50, 101)
	_, curveErr := p.CreateCurvePoint(42, 50, 50)

	// THEN
	var validationErr *ValidationError
	assert.ErrorAs(t, dutyErr, &validationErr)
	assert.ErrorIs(t, curveErr, ErrNotFound)
}

func TestPersistence_ReplaceCurvePoints(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	sensor := createTestSensor(t, p, "cpu")
	curve, _ := p.CreateCurve(sensor.Id, "quiet")
	_, _ = p.CreateCurvePoint(curve.Id, 10, 10)

	// WHEN
	points, err := p.ReplaceCurvePoints(curve.Id, []model.CurvePoint{
		{TempC: 70, DutyPercent: 90},
		{TempC: 30, DutyPercent: 10},
	})

	// THEN
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 30.0, points[0].TempC)
	assert.Equal(t, 70.0, points[1].TempC)
	assert.Equal(t, curve.Id, points[0].CurveId)
}

func TestPersistence_ReplaceCurvePoints_InvalidKeepsExisting(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	sensor := createTestSensor(t, p, "cpu")
	curve, _ := p.CreateCurve(sensor.Id, "quiet")
	_, _ = p.CreateCurvePoint(curve.Id, 10, 10)

	// WHEN
	_, dutyErr := p.ReplaceCurvePoints(curve.Id, []model.CurvePoint{{TempC: 30, DutyPercent: 120}})
	_, duplicateErr := p.ReplaceCurvePoints(curve.Id, []model.CurvePoint{
		{TempC: 30, DutyPercent: 10},
		{TempC: 30.02, DutyPercent: 20},
	})

	// THEN
	assert.Error(t, dutyErr)
	assert.Error(t, duplicateErr)
	points, _ := p.ListCurvePoints(curve.Id)
	require.Len(t, points, 1)
	assert.Equal(t, 10.0, points[0].TempC)
}

func TestPersistence_UpdateCurvePoint(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	sensor := createTestSensor(t, p, "cpu")
	curve, _ := p.CreateCurve(sensor.Id, "quiet")
	point, _ := p.CreateCurvePoint(curve.Id, 40, 20)
	_, _ = p.CreateCurvePoint(curve.Id, 60, 80)
	temp := 45.06
	duty := 30

	// WHEN
	updated, err := p.UpdateCurvePoint(point.Id, PointUpdate{TempC: &temp, DutyPercent: &duty})

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 45.1, updated.TempC)
	assert.Equal(t, 30, updated.DutyPercent)

	// WHEN
	conflict := 60.0
	_, err = p.UpdateCurvePoint(point.Id, PointUpdate{TempC: &conflict})

	// THEN
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestPersistence_DeleteCurvePoint(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	sensor := createTestSensor(t, p, "cpu")
	curve, _ := p.CreateCurve(sensor.Id, "quiet")
	point, _ := p.CreateCurvePoint(curve.Id, 40, 20)

	// WHEN
	deleted, err := p.DeleteCurvePoint(point.Id)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, point.Id, deleted.Id)
	_, err = p.DeleteCurvePoint(point.Id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersistence_DeleteCurve_DeletesPoints(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	sensor := createTestSensor(t, p, "cpu")
	curve, _ := p.CreateCurve(sensor.Id, "quiet")
	other, _ := p.CreateCurve(sensor.Id, "loud")
	_, _ = p.CreateCurvePoint(curve.Id, 40, 20)
	_, _ = p.CreateCurvePoint(other.Id, 40, 20)

	// WHEN
	_, err := p.DeleteCurve(curve.Id)

	// THEN
	require.NoError(t, err)
	points, _ := p.ListCurvePoints(curve.Id)
	assert.Empty(t, points)
	otherPoints, _ := p.ListCurvePoints(other.Id)
	assert.Len(t, otherPoints, 1)
}

func TestPersistence_SeedSettings_DoesNotOverwrite(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	_, err := p.UpdateSettings(map[string]string{settings.KeyHysteresisC: "2.5"})
	require.NoError(t, err)

	// WHEN
	err = p.SeedSettings(settings.DefaultValues(25000))

	// THEN
	require.NoError(t, err)
	all, err := p.GetAllSettings()
	require.NoError(t, err)
	assert.Equal(t, "2.5", all[settings.KeyHysteresisC])
	assert.Equal(t, "25000", all[settings.KeyPwmFrequencyHz])
	assert.Len(t, all, len(settings.Keys()))
}

func TestPersistence_UpdateSettings_RejectsInvalid(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	require.NoError(t, p.SeedSettings(settings.DefaultValues(25000)))

	// WHEN
	_, err := p.UpdateSettings(map[string]string{
		settings.KeyHysteresisC:      "3",
		settings.KeyHardLimitMarginC: "25",
	})

	// THEN
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, settings.KeyHardLimitMarginC, validationErr.Field)
	value, ok, err := p.GetSetting(settings.KeyHysteresisC)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1.0", value)
}

func TestPersistence_UpdateSettings_UnknownKey(t *testing.T) {
	p := newTestPersistence(t)
	_, err := p.UpdateSettings(map[string]string{"fan_color": "red"})
	assert.Error(t, err)
}

func TestPersistence_GetSetting_Missing(t *testing.T) {
	p := newTestPersistence(t)
	_, ok, err := p.GetSetting(settings.KeyHysteresisC)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestPersistence_Events(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	for _, message := range []string{"first", "second", "third"} {
		_, err := p.AppendEvent(model.EventLevelError, message, "ctx")
		require.NoError(t, err)
	}

	// WHEN
	events, err := p.ListEvents(2)

	// THEN
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "third", events[0].Message)
	assert.Equal(t, "second", events[1].Message)
	assert.Equal(t, model.EventLevelError, events[0].Level)
	assert.Equal(t, "ctx", events[0].Context)
}

func TestPersistence_AppendEvent_Validation(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)

	// WHEN
	_, err := p.AppendEvent(model.EventLevelInfo, "  ", "")
	event, defaultErr := p.AppendEvent("", "started", "")

	// THEN
	assert.Error(t, err)
	require.NoError(t, defaultErr)
	assert.Equal(t, model.EventLevelInfo, event.Level)
}

func TestPersistence_TrimEvents(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	for i := 0; i < 10; i++ {
		_, err := p.AppendEvent(model.EventLevelInfo, "event", "")
		require.NoError(t, err)
	}

	// WHEN
	deleted, err := p.TrimEvents(4)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 6, deleted)
	events, _ := p.ListEvents(100)
	require.Len(t, events, 4)
	assert.Equal(t, int64(10), events[0].Id)
	assert.Equal(t, int64(7), events[3].Id)
}

func TestPersistence_Seed(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	thermalZone := createSensorSource(t)

	// WHEN
	created, err := p.Seed(thermalZone)

	// THEN
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, DefaultSensorName, created[0].Name)

	curve, err := p.GetActiveCurve(created[0].Id)
	require.NoError(t, err)
	require.NotNil(t, curve)
	assert.Equal(t, DefaultCurveName, curve.Name)

	points, err := p.ListCurvePoints(curve.Id)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 50, points[1].DutyPercent)

	// WHEN
	createdAgain, err := p.Seed(thermalZone)

	// THEN
	require.NoError(t, err)
	assert.Empty(t, createdAgain)
	curves, _ := p.ListCurves(created[0].Id)
	assert.Len(t, curves, 1)
}

func TestPersistence_Seed_MissingThermalZone(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)

	// WHEN
	created, err := p.Seed(filepath.Join(t.TempDir(), "missing"))

	// THEN
	require.NoError(t, err)
	assert.Empty(t, created)
	sensors, _ := p.ListSensors()
	assert.Empty(t, sensors)
}

func TestPersistence_Seed_AddsCurveToExistingSensor(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	sensor := createTestSensor(t, p, "board")

	// WHEN
	created, err := p.Seed(createSensorSource(t))

	// THEN
	require.NoError(t, err)
	assert.Empty(t, created)
	curve, err := p.GetActiveCurve(sensor.Id)
	require.NoError(t, err)
	assert.NotNil(t, curve)
}

func TestPersistence_Backup(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	createTestSensor(t, p, "cpu")
	buffer := &bytes.Buffer{}

	// WHEN
	size, err := p.Backup(buffer)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, int64(buffer.Len()), size)

	backupPath := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, os.WriteFile(backupPath, buffer.Bytes(), 0600))
	restored := NewPersistence(backupPath, nil)
	require.NoError(t, restored.Init())
	defer func() {
		_ = restored.Close()
	}()
	sensors, err := restored.ListSensors()
	require.NoError(t, err)
	require.Len(t, sensors, 1)
	assert.Equal(t, "cpu", sensors[0].Name)
}

func TestPersistence_CorruptEntryIsSkipped(t *testing.T) {
	// GIVEN
	dbPath := filepath.Join(t.TempDir(), "fan2pwm.db")
	p := NewPersistence(dbPath, nil)
	require.NoError(t, p.Init())
	createTestSensor(t, p, "cpu")
	require.NoError(t, p.Close())

	db, err := bolt.Open(dbPath, 0600, nil)
	require.NoError(t, err)
	err = db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketSensors)).Put(itob(99), []byte("{not json"))
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// WHEN
	require.NoError(t, p.Init())
	defer func() {
		_ = p.Close()
	}()
	sensors, err := p.ListSensors()

	// THEN
	require.NoError(t, err)
	assert.Len(t, sensors, 1)
}
