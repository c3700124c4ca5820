package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override. A double underscore nests:
// LOCALRAG_BACKEND__URL sets backend.url.
const EnvPrefix = "LOCALRAG_"

// LocalConfigFile is looked up in the working directory.
const LocalConfigFile = "localrag.yaml"

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"backend-url": "backend.url",
	"log-file":    "log.file",
	"log-level":   "log.level",
}

// findConfigFile finds the config file to use.
// Priority: explicit path > ./localrag.yaml > ~/.config/localrag/config.yaml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(LocalConfigFile); err == nil {
		return LocalConfigFile
	}
	if p, err := DefaultUserConfigPath(); err == nil {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// listKeys are comma separated when set from the environment.
var listKeys = map[string]struct{}{
	"intake.accept": {},
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func defaultValues() map[string]any {
	d := Default()
	return map[string]any{
		"backend.url":                   d.Backend.URL,
		"backend.timeout_secs":          d.Backend.TimeoutSecs,
		"backend.upload_field":          d.Backend.UploadField,
		"intake.accept":                 d.Intake.Accept,
		"query.submit_key":              d.Query.SubmitKey,
		"workflow.late_responses":       d.Workflow.LateResponses,
		"log.file":                      d.Log.File,
		"log.level":                     d.Log.Level,
		"devserver.addr":                d.DevServer.Addr,
		"devserver.top_k":               d.DevServer.TopK,
		"devserver.sentences_per_chunk": d.DevServer.SentencesPerChunk,
		"devserver.overlap_sentences":   d.DevServer.OverlapSentences,
		"devserver.answer_sentences":    d.DevServer.AnswerSentences,
		"devserver.embedder.type":       d.DevServer.Embedder.Type,
		"devserver.vector_store.type":   d.DevServer.VectorStore.Type,
		"devserver.generator.type":      d.DevServer.Generator.Type,
	}
}

// Load reads configuration from defaults, the config file, LOCALRAG_*
// environment variables and explicitly set flags, in increasing precedence.
// It returns the config file used, or "" when none was found.
func Load(cfgFile string, flags *pflag.FlagSet) (*AppConfig, string, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultValues(), "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(s, v string) (string, interface{}) {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		key = strings.ReplaceAll(key, "__", ".")
		if _, ok := listKeys[key]; ok {
			return key, splitList(v)
		}
		return key, v
	}), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, "", fmt.Errorf("unable to decode config: %w", err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, used, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, used, nil
}
