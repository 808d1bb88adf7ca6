package database

import (
	"fmt"

	"github.com/activecm/flowsentry/config"
	"github.com/activecm/mgosec"
	"github.com/blang/semver"
	"github.com/globalsign/mgo"
	log "github.com/sirupsen/logrus"
)

//MinMongoDBVersion is the lower, inclusive bound on the
//versions of MongoDB compatible with flowsentry
var MinMongoDBVersion = semver.Version{
	Major: 3,
	Minor: 6,
	Patch: 0,
}

//MaxMongoDBVersion is the upper, exclusive bound on the
//versions of MongoDB compatible with flowsentry
var MaxMongoDBVersion = semver.Version{
	Major: 5,
	Minor: 0,
	Patch: 0,
}

// DB is the workhorse container for messing with the database
type DB struct {
	Session  *mgo.Session
	log      *log.Logger
	selected string
}

//NewDB constructs a new DB struct and selects the configured database
func NewDB(conf *config.Config, log *log.Logger) (*DB, error) {
	session, err := connectToMongoDB(conf, log)
	if err != nil {
		return nil, err
	}
	session.SetSocketTimeout(conf.S.MongoDB.SocketTimeout)
	session.SetSyncTimeout(conf.S.MongoDB.SocketTimeout)
	session.SetCursorTimeout(0)

	return &DB{
		Session:  session,
		log:      log,
		selected: conf.S.MongoDB.Database,
	}, nil
}

//connectToMongoDB connects to MongoDB possibly with authentication and TLS
func connectToMongoDB(conf *config.Config, logger *log.Logger) (*mgo.Session, error) {
	connString := conf.S.MongoDB.ConnectionString
	authMechanism := conf.R.MongoDB.AuthMechanismParsed
	tlsConfig := conf.R.MongoDB.TLS.TLSConfig

	var sess *mgo.Session
	var err error
	if conf.S.MongoDB.TLS.Enabled {
		sess, err = mgosec.Dial(connString, authMechanism, tlsConfig)
	} else {
		sess, err = mgosec.DialInsecure(connString, authMechanism)
	}
	if err != nil {
		return sess, err
	}

	buildInfo, err := sess.BuildInfo()
	if err != nil {
		sess.Close()
		return nil, err
	}

	if err := checkVersion(buildInfo.Version); err != nil {
		sess.Close()
		return nil, err
	}

	logger.WithFields(log.Fields{
		"version": buildInfo.Version,
	}).Debug("Connected to MongoDB")
	return sess, nil
}

// checkVersion rejects MongoDB servers outside of the supported range
func checkVersion(version string) error {
	semVersion, err := semver.ParseTolerant(version)
	if err != nil {
		return err
	}

	if !(semVersion.GE(MinMongoDBVersion) && semVersion.LT(MaxMongoDBVersion)) {
		return fmt.Errorf(
			"unsupported version of MongoDB. %s not within [%s, %s)",
			semVersion.String(),
			MinMongoDBVersion.String(),
			MaxMongoDBVersion.String(),
		)
	}
	return nil
}

//SelectDB selects a database
func (d *DB) SelectDB(db string) {
	d.selected = db
}

//GetSelectedDB retrieves the currently selected database
func (d *DB) GetSelectedDB() string {
	return d.selected
}

//CollectionExists returns true if collection exists in the currently
//selected database
func (d *DB) CollectionExists(table string) bool {
	ssn := d.Session.Copy()
	defer ssn.Close()
	coll, err := ssn.DB(d.selected).CollectionNames()
	if err != nil {
		d.log.WithFields(log.Fields{
			"error": err.Error(),
		}).Error("Failed collection name lookup")
		return false
	}
	for _, name := range coll {
		if name == table {
			return true
		}
	}
	return false
}

//EnsureCollection creates a collection in the currently selected
//database if it is missing and builds the given indexes on it
func (d *DB) EnsureCollection(name string, indexes []mgo.Index) error {
	session := d.Session.Copy()
	defer session.Close()

	if !d.CollectionExists(name) {
		d.log.Debug("Building collection: ", name)
		err := session.DB(d.selected).C(name).Create(&mgo.CollectionInfo{})
		if err != nil {
			return err
		}
	}

	collection := session.DB(d.selected).C(name)
	for _, index := range indexes {
		err := collection.EnsureIndex(index)
		if err != nil {
			return err
		}
	}
	return nil
}

// Close ends the underlying session
func (d *DB) Close() {
	d.Session.Close()
}
