package resources

import (
	"os"
	"testing"

	"github.com/activecm/flowsentry/config"
	"github.com/activecm/flowsentry/database"
	"github.com/activecm/flowsentry/pkg/whitelist"
	"github.com/sirupsen/logrus/hooks/test"
)

// InitTestingResources creates a resource bundle over the testing config
// without a database. Log entries are kept in memory.
func InitTestingResources(t *testing.T) (*Resources, *test.Hook) {
	conf, err := config.LoadTestingConfig("")
	if err != nil {
		t.Fatal(err)
	}

	logger, hook := test.NewNullLogger()
	wl, err := whitelist.NewHolder("")
	if err != nil {
		t.Fatal(err)
	}

	return &Resources{
		Config:    conf,
		Store:     config.NewStore(conf, ""),
		Log:       logger,
		Whitelist: wl,
	}, hook
}

//InitIntegrationTestingResources creates a default testing
//resource bundle for use with integration testing.
//The MongoDB server is contacted via the URI provided
//as by go test -args [MongoDB URI].
func InitIntegrationTestingResources(t *testing.T) *Resources {
	if testing.Short() {
		t.Skip()
	}

	if len(os.Args) != 2 {
		t.Skip("-args [MongoDB URI] is required to run flowsentry integration tests with go test")
	}

	conf, err := config.LoadTestingConfig(os.Args[1])
	if err != nil {
		t.Fatal(err)
	}

	// Fire up the logging system
	log := initLogger(&conf.S.Log)

	// Allows code to interact with the database
	db, err := database.NewDB(conf, log)
	if err != nil {
		t.Fatal(err)
	}

	wl, err := whitelist.NewHolder("")
	if err != nil {
		t.Fatal(err)
	}

	return &Resources{
		Config:    conf,
		Store:     config.NewStore(conf, ""),
		Log:       log,
		DB:        db,
		Whitelist: wl,
	}
}
