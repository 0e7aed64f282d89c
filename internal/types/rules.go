package types

// MatchMode is the equivalence relation used to decide two tab URLs show the same page.
type MatchMode string

const (
	MatchExact        MatchMode = "exact"
	MatchHostnamePath MatchMode = "hostname_path"
	MatchHostname     MatchMode = "hostname"
	MatchIncludes     MatchMode = "includes"
)

// Normalize returns m, or MatchExact for unknown values.
func (m MatchMode) Normalize() MatchMode {
	switch m {
	case MatchExact, MatchHostnamePath, MatchHostname, MatchIncludes:
		return m
	default:
		return MatchExact
	}
}

// NameSource selects where a rule's group name comes from.
type NameSource string

const (
	NameFromLabel  NameSource = "label"
	NameFromTitle  NameSource = "title"
	NameFromURL    NameSource = "url"
	NameFromManual NameSource = "manual"
)

// Normalize returns s, or NameFromLabel for unknown values.
func (s NameSource) Normalize() NameSource {
	switch s {
	case NameFromLabel, NameFromTitle, NameFromURL, NameFromManual:
		return s
	default:
		return NameFromLabel
	}
}

// DomainRule maps a hostname pattern to grouping and deduplication behavior.
type DomainRule struct {
	ID                     string     `yaml:"id" json:"id"`
	Label                  string     `yaml:"label" json:"label"`
	DomainFilter           string     `yaml:"domainFilter" json:"domainFilter"`
	Enabled                bool       `yaml:"enabled" json:"enabled"`
	GroupingEnabled        bool       `yaml:"groupingEnabled" json:"groupingEnabled"`
	DeduplicationEnabled   bool       `yaml:"deduplicationEnabled" json:"deduplicationEnabled"`
	DeduplicationMatchMode MatchMode  `yaml:"deduplicationMatchMode" json:"deduplicationMatchMode"`
	GroupNameSource        NameSource `yaml:"groupNameSource" json:"groupNameSource"`
	TitleParsingRegEx      string     `yaml:"titleParsingRegEx,omitempty" json:"titleParsingRegEx,omitempty"`
	URLParsingRegEx        string     `yaml:"urlParsingRegEx,omitempty" json:"urlParsingRegEx,omitempty"`
	GroupID                string     `yaml:"groupId,omitempty" json:"groupId,omitempty"`
	CollapseNew            bool       `yaml:"collapseNew" json:"collapseNew"`
	CollapseExisting       bool       `yaml:"collapseExisting" json:"collapseExisting"`
}

// LogicalGroup is a named color bucket rules can reference.
type LogicalGroup struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Color string `yaml:"color" json:"color"`
}

// Settings is the user configuration the engine reads.
type Settings struct {
	GlobalGroupingEnabled      bool           `yaml:"globalGroupingEnabled" json:"globalGroupingEnabled"`
	GlobalDeduplicationEnabled bool           `yaml:"globalDeduplicationEnabled" json:"globalDeduplicationEnabled"`
	ShowNotifications          bool           `yaml:"showNotifications" json:"showNotifications"`
	DomainRules                []DomainRule   `yaml:"domainRules" json:"domainRules"`
	LogicalGroups              []LogicalGroup `yaml:"logicalGroups" json:"logicalGroups"`
}

// LogicalGroupByID returns the logical group with the given id.
func (s *Settings) LogicalGroupByID(id string) (*LogicalGroup, bool) {
	if id == "" {
		return nil, false
	}
	for i := range s.LogicalGroups {
		if s.LogicalGroups[i].ID == id {
			return &s.LogicalGroups[i], true
		}
	}
	return nil, false
}

// GroupColors is the tab group color palette supported by browsers.
var GroupColors = []string{"grey", "blue", "red", "yellow", "green", "pink", "purple", "cyan", "orange"}

// ValidColor reports whether c is a tab group color.
func ValidColor(c string) bool {
	for _, gc := range GroupColors {
		if gc == c {
			return true
		}
	}
	return false
}

// Counter names kept by the statistics store.
const (
	CounterGroupsCreated    = "tabGroupsCreatedCount"
	CounterTabsDeduplicated = "tabsDeduplicatedCount"
)
