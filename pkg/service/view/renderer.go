package view

import (
	_ "embed"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/proteus/pkg/domain/model"
)

// FrequencyActionID is the action_id of the cadence select menu in the Home tab
const FrequencyActionID = "static_select-action"

//go:embed templates/home_tab.json
var defaultHomeTab string

//go:embed templates/frequency_option.json
var defaultFrequencyOption string

// Templates holds the two view templates. Placeholders are {USER_ID}, {OPTION_LIST} and
// {INITIAL_OPTION} in HomeTab, and {OPTION_VALUE} and {OPTION_TEXT} in FrequencyOption.
type Templates struct {
	HomeTab         string `toml:"home_tab"`
	FrequencyOption string `toml:"frequency_option"`
}

// DefaultTemplates returns the embedded templates
func DefaultTemplates() Templates {
	return Templates{
		HomeTab:         defaultHomeTab,
		FrequencyOption: defaultFrequencyOption,
	}
}

// LoadTemplates reads a TOML file. Keys that are missing or empty keep the embedded default.
func LoadTemplates(path string) (Templates, error) {
	tmpl := DefaultTemplates()

	data, err := os.ReadFile(path)
	if err != nil {
		return tmpl, goerr.Wrap(model.ErrConfiguration, "failed to read view config",
			goerr.V("path", path),
			goerr.V("cause", err.Error()))
	}

	var loaded Templates
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return tmpl, goerr.Wrap(model.ErrConfiguration, "failed to parse view config",
			goerr.V("path", path),
			goerr.V("cause", err.Error()))
	}

	if loaded.HomeTab != "" {
		tmpl.HomeTab = loaded.HomeTab
	}
	if loaded.FrequencyOption != "" {
		tmpl.FrequencyOption = loaded.FrequencyOption
	}
	return tmpl, nil
}

// Renderer produces views.publish documents for the Home tab
type Renderer struct {
	table     *model.FrequencyTable
	templates Templates
}

func NewRenderer(table *model.FrequencyTable, templates Templates) *Renderer {
	return &Renderer{table: table, templates: templates}
}

// RenderOption renders the option fragment of one table entry
func (r *Renderer) RenderOption(opt model.FrequencyOption) (string, error) {
	fragment := strings.NewReplacer(
		"{OPTION_VALUE}", strconv.Itoa(opt.Seconds),
		"{OPTION_TEXT}", escapeJSONString(opt.Label),
	).Replace(r.templates.FrequencyOption)

	fragment = strings.TrimSpace(fragment)
	if !json.Valid([]byte(fragment)) {
		return "", goerr.Wrap(model.ErrConfiguration, "option fragment is not valid JSON",
			goerr.V("seconds", opt.Seconds))
	}
	return fragment, nil
}

// RenderHomeTab substitutes the user and the option list into the home tab template.
// current selects the initial option; a value outside the table renders "{}".
func (r *Renderer) RenderHomeTab(userID model.SlackUserID, current int) ([]byte, error) {
	var (
		fragments []string
		initial   = "{}"
	)
	for _, opt := range r.table.Options() {
		fragment, err := r.RenderOption(opt)
		if err != nil {
			continue
		}
		fragments = append(fragments, fragment)
		if opt.Seconds == current {
			initial = fragment
		}
	}

	doc := strings.NewReplacer(
		"{USER_ID}", escapeJSONString(string(userID)),
		"{OPTION_LIST}", strings.Join(fragments, ", "),
		"{INITIAL_OPTION}", initial,
	).Replace(r.templates.HomeTab)

	if !json.Valid([]byte(doc)) {
		return nil, goerr.Wrap(model.ErrConfiguration, "rendered home tab is not valid JSON",
			goerr.V("user_id", userID))
	}
	return []byte(doc), nil
}

// escapeJSONString returns s encoded for use inside a JSON string literal
func escapeJSONString(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}
