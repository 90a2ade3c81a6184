// Package recorder implements the optional flight-recorder sink: a
// supplemented feature (not part of the distilled spec) that persists a
// row per dispatched bundle — its pose summary plus the raw measurements
// that produced it — so a session can be inspected or replayed offline,
// the way the original ROS node could be driven from a rosbag.
package recorder

import (
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"

	"github.com/gnss-vio/gvins-core/measurement"
)

// Row is one dispatched bundle's recorded summary plus the raw IMU slice,
// feature frame, and (if paired) GNSS epoch that produced it, so a session
// can be replayed verbatim rather than just inspected.
type Row struct {
	SessionID  string
	TImage     float64
	GNSSPaired bool
	IMUCount   int
	PoseX      float64
	PoseY      float64
	PoseZ      float64

	IMU     []measurement.IMUSample
	Feature measurement.FeatureFrame
	GNSS    *measurement.GNSSEpoch
}

// Recorder persists Rows to a SQLite database at Path.
type Recorder struct {
	db        *sql.DB
	sessionID string
}

// Open creates (or reuses) a SQLite database at path and starts a new
// session, identified by a fresh UUID so multiple recorded/replayed runs
// against the same file stay distinguishable.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open flight recorder database")
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bundles (
			session_id TEXT,
			t_image DOUBLE,
			gnss_paired BOOLEAN,
			imu_count INTEGER,
			pose_x DOUBLE,
			pose_y DOUBLE,
			pose_z DOUBLE,
			imu_json TEXT,
			feature_json TEXT,
			gnss_json TEXT,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create bundles table")
	}
	return &Recorder{db: db, sessionID: uuid.NewString()}, nil
}

// SessionID returns the UUID stamped on every row this Recorder writes.
func (r *Recorder) SessionID() string { return r.sessionID }

// LatestSessionID returns the session ID of the most recently recorded
// bundle in the database, for resuming inspection or replay of a prior run
// rather than this Recorder's own freshly minted session.
func (r *Recorder) LatestSessionID() (string, error) {
	var sessionID string
	err := r.db.QueryRow(`SELECT session_id FROM bundles ORDER BY rowid DESC LIMIT 1`).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return "", errors.New("no recorded sessions")
	}
	if err != nil {
		return "", errors.Wrap(err, "query latest session")
	}
	return sessionID, nil
}

// Record persists one dispatched bundle's summary and raw measurements.
func (r *Recorder) Record(row Row) error {
	row.SessionID = r.sessionID

	imuJSON, err := json.Marshal(row.IMU)
	if err != nil {
		return errors.Wrap(err, "marshal recorded imu samples")
	}
	featureJSON, err := json.Marshal(row.Feature)
	if err != nil {
		return errors.Wrap(err, "marshal recorded feature frame")
	}
	var gnssJSON []byte
	if row.GNSS != nil {
		gnssJSON, err = json.Marshal(row.GNSS)
		if err != nil {
			return errors.Wrap(err, "marshal recorded gnss epoch")
		}
	}

	_, err = r.db.Exec(
		`INSERT INTO bundles (session_id, t_image, gnss_paired, imu_count, pose_x, pose_y, pose_z, imu_json, feature_json, gnss_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.SessionID, row.TImage, row.GNSSPaired, row.IMUCount, row.PoseX, row.PoseY, row.PoseZ,
		string(imuJSON), string(featureJSON), string(gnssJSON),
	)
	if err != nil {
		return errors.Wrap(err, "record bundle")
	}
	return nil
}

// Rows returns every recorded row for the given session, ordered by image
// time, for offline inspection or replay seeding.
func (r *Recorder) Rows(sessionID string) ([]Row, error) {
	result, err := r.db.Query(
		`SELECT session_id, t_image, gnss_paired, imu_count, pose_x, pose_y, pose_z, imu_json, feature_json, gnss_json
		 FROM bundles WHERE session_id = ? ORDER BY t_image ASC`,
		sessionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query recorded bundles")
	}
	defer result.Close()

	var rows []Row
	for result.Next() {
		var row Row
		var imuJSON, featureJSON, gnssJSON sql.NullString
		if err := result.Scan(
			&row.SessionID, &row.TImage, &row.GNSSPaired, &row.IMUCount, &row.PoseX, &row.PoseY, &row.PoseZ,
			&imuJSON, &featureJSON, &gnssJSON,
		); err != nil {
			return nil, errors.Wrap(err, "scan recorded bundle")
		}
		if imuJSON.Valid && imuJSON.String != "" {
			if err := json.Unmarshal([]byte(imuJSON.String), &row.IMU); err != nil {
				return nil, errors.Wrap(err, "unmarshal recorded imu samples")
			}
		}
		if featureJSON.Valid && featureJSON.String != "" {
			if err := json.Unmarshal([]byte(featureJSON.String), &row.Feature); err != nil {
				return nil, errors.Wrap(err, "unmarshal recorded feature frame")
			}
		}
		if gnssJSON.Valid && gnssJSON.String != "" {
			if err := json.Unmarshal([]byte(gnssJSON.String), &row.GNSS); err != nil {
				return nil, errors.Wrap(err, "unmarshal recorded gnss epoch")
			}
		}
		rows = append(rows, row)
	}
	return rows, result.Err()
}

// Close releases the underlying database handle.
func (r *Recorder) Close() error {
	return r.db.Close()
}
