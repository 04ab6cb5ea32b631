package db

import (
	"context"
	"sort"
	"time"

	"link_checker/internal/config"
	"link_checker/internal/models"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB keeps the latest status of every checked link and an append-only
// history of individual checks.
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	links    *mongo.Collection
	history  *mongo.Collection
	log      logrus.FieldLogger
}

func NewMongoDB(cfg config.DBConfig, log logrus.FieldLogger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to MongoDB")
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, eris.Wrap(err, "can't ping MongoDB")
	}

	db := client.Database(cfg.Database)
	d := &MongoDB{
		client:   client,
		database: db,
		links:    db.Collection(cfg.Collections.Links),
		history:  db.Collection(cfg.Collections.History),
		log:      log,
	}

	d.createIndexes(ctx)
	return d, nil
}

func (d *MongoDB) createIndexes(ctx context.Context) {
	_, err := d.links.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "url", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		d.log.Warnf("can't create url index: %v", err)
	}

	_, err = d.history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "url", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	if err != nil {
		d.log.Warnf("can't create history index: %v", err)
	}
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}

// Record stores the outcomes of one sheet: a history entry per checked link
// and an updated status per distinct URL.
func (d *MongoDB) Record(ctx context.Context, unit, sheet string, outcomes models.OutcomeSet) error {
	records := BuildRecords(unit, sheet, outcomes, time.Now())
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	docs := make([]interface{}, len(records))
	for i := range records {
		docs[i] = records[i]
	}
	if _, err := d.history.InsertMany(ctx, docs); err != nil {
		return eris.Wrapf(err, "insert history of %s/%s", unit, sheet)
	}

	for _, rec := range records {
		status := &models.LinkStatus{
			URL:         rec.URL,
			StatusCode:  rec.StatusCode,
			Matches:     rec.Matches,
			IsValid:     rec.Status == "good",
			LastChecked: rec.Timestamp,
		}
		if err := d.SaveLinkStatus(ctx, status); err != nil {
			return err
		}
	}
	return nil
}

func (d *MongoDB) SaveLinkStatus(ctx context.Context, status *models.LinkStatus) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"status_code":  status.StatusCode,
			"matches":      status.Matches,
			"is_valid":     status.IsValid,
			"last_checked": status.LastChecked,
		},
		"$setOnInsert": bson.M{"first_checked": status.LastChecked},
		"$inc":         bson.M{"check_count": 1},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := d.links.UpdateOne(ctx, bson.M{"url": status.URL}, update, opts); err != nil {
		return eris.Wrapf(err, "save status of %s", status.URL)
	}
	return nil
}

// GetLinkStatus returns nil without error for a URL that was never checked.
func (d *MongoDB) GetLinkStatus(ctx context.Context, url string) (*models.LinkStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var status models.LinkStatus
	err := d.links.FindOne(ctx, bson.M{"url": url}).Decode(&status)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "find status of %s", url)
	}
	return &status, nil
}

// GetHistory returns the latest checks of url, newest first.
func (d *MongoDB) GetHistory(ctx context.Context, url string, limit int) ([]models.CheckRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := d.history.Find(ctx, bson.M{"url": url}, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "find history of %s", url)
	}
	defer cursor.Close(ctx)

	var records []models.CheckRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, eris.Wrapf(err, "decode history of %s", url)
	}
	return records, nil
}

// BuildRecords flattens an outcome set into history records ordered by line.
func BuildRecords(unit, sheet string, outcomes models.OutcomeSet, now time.Time) []models.CheckRecord {
	lines := make([]int, 0, len(outcomes))
	for line := range outcomes {
		lines = append(lines, line)
	}
	sort.Ints(lines)

	var records []models.CheckRecord
	for _, line := range lines {
		for _, o := range outcomes[line] {
			matches := o.Matches
			if matches == nil {
				matches = []string{}
			}
			records = append(records, models.CheckRecord{
				ID:         uuid.NewString(),
				Unit:       unit,
				Sheet:      sheet,
				Line:       line,
				URL:        o.URL,
				StatusCode: o.StatusCode,
				Matches:    matches,
				Status:     o.Verdict(),
				Timestamp:  now.Unix(),
			})
		}
	}
	return records
}
