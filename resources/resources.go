package resources

import (
	"fmt"

	"github.com/activecm/flowsentry/config"
	"github.com/activecm/flowsentry/database"
	"github.com/activecm/flowsentry/pkg/blacklist"
	"github.com/activecm/flowsentry/pkg/report"
	"github.com/activecm/flowsentry/pkg/whitelist"
	log "github.com/sirupsen/logrus"
)

type (
	// Resources provides a data structure for passing system Resources
	Resources struct {
		Config    *config.Config
		Store     *config.Store
		Log       *log.Logger
		DB        *database.DB // nil unless MongoDB output or logging is on
		Whitelist *whitelist.Holder
		Blacklist *blacklist.Holder // nil unless the blacklist detector is on
	}
)

// InitResources grabs the configuration file and intitializes the configuration data
// returning a *Resources object which has all of the necessary configuration information
func InitResources(userConfig string) (*Resources, error) {
	conf, err := config.LoadConfig(userConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Fire up the logging system
	log := initLogger(&conf.S.Log)
	if conf.S.Log.LogToFile {
		if err := addFileLogger(log, conf.S.Log.LogPath); err != nil {
			return nil, fmt.Errorf("failed to set up file logging: %w", err)
		}
	}

	r := &Resources{
		Config: conf,
		Store:  config.NewStore(conf, userConfig),
		Log:    log,
	}

	// Only talk to the database when something is stored in it
	if conf.S.Output.MongoDB || conf.S.Log.LogToDB {
		r.DB, err = database.NewDB(conf, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	}

	//Begin logging to the database
	if conf.S.Log.LogToDB {
		err = addMongoLogger(log, r.DB.Session, r.DB.GetSelectedDB(), conf.T.Log.LogTable)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to set up database logging: %w", err)
		}
	}

	if err := r.loadLists(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Resources) loadLists() error {
	var err error
	r.Whitelist, err = whitelist.NewHolder(r.Config.S.Whitelist.File)
	if err != nil {
		return fmt.Errorf("failed to load whitelist: %w", err)
	}
	r.Log.WithFields(log.Fields{
		"path":  r.Config.S.Whitelist.File,
		"rules": r.Whitelist.Current().Len(),
	}).Debug("Whitelist loaded")

	if r.Config.S.Blacklist.Enabled {
		r.Blacklist, err = blacklist.NewHolder(r.Config.S.Blacklist.Files)
		if err != nil {
			return fmt.Errorf("failed to load blacklist: %w", err)
		}
		r.Log.WithFields(log.Fields{
			"lists":   r.Blacklist.Current().Lists(),
			"entries": r.Blacklist.Current().Len(),
		}).Debug("Blacklist loaded")
	}
	return nil
}

// NewSender combines the report outputs named by the configuration
func (r *Resources) NewSender() (*report.MultiSender, error) {
	out := r.Config.S.Output
	sender := report.NewMultiSender(r.Log)

	if out.LogReports {
		sender.Add(report.NewLogSender(r.Log))
	}
	if out.ReportFile != "" {
		fs, err := report.NewFileSender(out.ReportFile)
		if err != nil {
			sender.Close()
			return nil, fmt.Errorf("failed to open report file: %w", err)
		}
		sender.Add(fs)
	}
	if out.MongoDB {
		ms, err := report.NewMongoSender(r.DB, r.Config)
		if err != nil {
			sender.Close()
			return nil, fmt.Errorf("failed to prepare report collection: %w", err)
		}
		sender.Add(ms)
	}
	if out.NATSSubject != "" {
		ns, err := report.NewNATSSender(r.Config.S.Input.NATSURL, out.NATSSubject)
		if err != nil {
			sender.Close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		sender.Add(ns)
	}

	if sender.Len() == 0 {
		r.Log.Warn("No report output is configured, reports are discarded")
	}
	return sender, nil
}

// Close releases the database session
func (r *Resources) Close() {
	if r.DB != nil {
		r.DB.Close()
	}
}
