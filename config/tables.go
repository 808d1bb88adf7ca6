package config

type (
	//TableCfg is the container for other table config sections
	TableCfg struct {
		Log     LogTableCfg
		Reports ReportTableCfg
	}

	//LogTableCfg contains the configuration for logging
	LogTableCfg struct {
		LogTable string `default:"logs"`
	}

	//ReportTableCfg contains the names of the report collections
	ReportTableCfg struct {
		ReportTable string `default:"reports"`
	}
)
