package report

import (
	"github.com/activecm/flowsentry/config"
	"github.com/activecm/flowsentry/database"
	"github.com/globalsign/mgo"
)

// MongoSender inserts reports into a MongoDB collection
type MongoSender struct {
	database *database.DB
	table    string
}

// NewMongoSender creates the report collection if needed
func NewMongoSender(db *database.DB, conf *config.Config) (*MongoSender, error) {
	s := &MongoSender{database: db, table: conf.T.Reports.ReportTable}

	indexes := []mgo.Index{
		{Key: []string{"host_ip"}},
		{Key: []string{"detector", "class"}},
		{Key: []string{"-timestamp"}},
	}
	if err := db.EnsureCollection(s.table, indexes); err != nil {
		return nil, err
	}
	return s, nil
}

// Send inserts r
func (s *MongoSender) Send(r *Report) error {
	session := s.database.Session.Copy()
	defer session.Close()
	return session.DB(s.database.GetSelectedDB()).C(s.table).Insert(r)
}
