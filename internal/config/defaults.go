package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeoutSeconds == 0 {
		cfg.Server.RequestTimeoutSeconds = 60
	}
	if cfg.Server.GenerateTimeoutSeconds == 0 {
		cfg.Server.GenerateTimeoutSeconds = 300
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/intelhub/data/db/digests.db"
	}
	if cfg.Storage.SearchIndexPath == "" {
		cfg.Storage.SearchIndexPath = "/usr/local/var/intelhub/data/indices/digests"
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-2.5-flash"
	}
	if cfg.AI.RequestsPerMinute == 0 {
		cfg.AI.RequestsPerMinute = 60
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 120
	}
	if cfg.AI.MaxAttempts == 0 {
		cfg.AI.MaxAttempts = 3
	}
	if cfg.AI.BaseDelayMillis == 0 {
		cfg.AI.BaseDelayMillis = 1000
	}
	if cfg.Chat.MaxUploadBytes == 0 {
		cfg.Chat.MaxUploadBytes = 2 * 1024 * 1024
	}
	if cfg.Chat.MaxRows == 0 {
		cfg.Chat.MaxRows = 500
	}
	if cfg.Chat.SessionCapacity == 0 {
		cfg.Chat.SessionCapacity = 100
	}
	if cfg.Tabs.Directory == "" {
		cfg.Tabs.Directory = "/usr/local/var/intelhub/assets"
	}
	if cfg.Tabs.Items == nil {
		cfg.Tabs.Items = DefaultTabs()
	}
}

// DefaultTabs returns the operations tabs shipped with the dashboard.
func DefaultTabs() []TabConfig {
	return []TabConfig{
		{
			Name:        "RMG",
			File:        "benchdata.xlsx",
			Description: "a list of employees in the Resource Management Group. It includes their skills, experience, location, and overall status.",
			Welcome:     "I have the RMG data. Ask me a question, or try one of the suggestions below.",
			SuggestedQuestions: []string{
				"How many people are on the Bench?",
				"List everyone in the ATG group",
				"Who has Python skills?",
			},
			SystemInstruction: rmgInstruction,
		},
		{
			Name:        "Recruitment",
			File:        "TAGMaster.xlsx",
			Description: "a list of current open job positions in the company. It includes job titles, departments, locations, and posting dates.",
			Welcome:     "I have the open positions data. Ask me a question, or try one of the suggestions below.",
			SuggestedQuestions: []string{
				"How many Senior Engineer roles are open?",
				"Which roles are open in the USA?",
				"List all open positions for the 'Data' department",
			},
			SystemInstruction: recruitmentInstruction,
		},
	}
}

const rmgInstruction = `You are a data analysis assistant for the Resource Management Group (RMG) team.
Always analyze the entire dataset; never answer from a subset unless the user filters explicitly.
Key columns: Entity (company entity filter), EMP Name, Role/Designation, Experience, Skill bracket,
Primary skills and Secondary skills (combine both for technology queries), Bench state date (bench duration),
Previous project, Previous manager, Reason, LWD (notice or ATG), Location (empty means Remote),
Lead and Blocked Date, Overall status (Bench, ML, ATG; the basis for all status queries).
Answer with bullet points or short sentences. Do not use tables unless the user asks for one.`

const recruitmentInstruction = `You are a data analysis assistant for a talent acquisition team.
Always analyze the entire dataset and never group by owner unless the user asks.
Revised Start Date is the authoritative start date. Client Name is the main grouping field.
Position Title/Role values like 'QA' match any QA-related role. Must have skills is a comma-separated list;
a skill filter matches if the skill appears anywhere in it. Treat location aliases as equal
(BengaIuru/Bengaluru, HYD/Hyderabad). Position Status decides open/closed/hold: fulfilled, full filled and
Full-Filled are the same status, and Hold equals On-Hold.`
