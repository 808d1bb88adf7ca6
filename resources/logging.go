package resources

import (
	"os"
	"path"
	"time"

	"github.com/activecm/flowsentry/config"
	"github.com/activecm/flowsentry/util"
	"github.com/activecm/mgorus"
	"github.com/globalsign/mgo"
	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
)

// initLogger creates the logger writing to stderr
func initLogger(logConfig *config.LogStaticCfg) *log.Logger {
	var logs = &log.Logger{}

	logs.Formatter = &log.TextFormatter{FullTimestamp: true}

	logs.Out = os.Stderr
	logs.Hooks = make(log.LevelHooks)

	switch logConfig.LogLevel {
	case 3:
		logs.Level = log.DebugLevel
	case 2:
		logs.Level = log.InfoLevel
	case 1:
		logs.Level = log.WarnLevel
	default:
		logs.Level = log.ErrorLevel
	}
	return logs
}

// addFileLogger writes one file per level under a directory named after
// the start time
func addFileLogger(logger *log.Logger, logPath string) error {
	started := time.Now().Format(util.TimeFormat)
	logPath = path.Join(logPath, started)
	if err := os.MkdirAll(logPath, 0755); err != nil {
		return err
	}

	logger.Hooks.Add(lfshook.NewHook(lfshook.PathMap{
		log.DebugLevel: path.Join(logPath, "debug.log"),
		log.InfoLevel:  path.Join(logPath, "info.log"),
		log.WarnLevel:  path.Join(logPath, "warn.log"),
		log.ErrorLevel: path.Join(logPath, "error.log"),
		log.FatalLevel: path.Join(logPath, "fatal.log"),
		log.PanicLevel: path.Join(logPath, "panic.log"),
	}, &log.JSONFormatter{}))
	return nil
}

func addMongoLogger(logger *log.Logger, ssn *mgo.Session, database string, collection string) error {
	err := ssn.DB(database).C(collection).Create(&mgo.CollectionInfo{})

	if err != nil {
		queryErr, ok := err.(*mgo.QueryError)
		//create fails with code 48 when the collection already exists
		if !ok || queryErr.Code != 48 {
			return err
		}
	}
	logger.Hooks.Add(
		mgorus.NewHookerFromSession(
			ssn, database, collection,
		),
	)
	return nil
}
