// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/stage"
	"github.com/livekit/livekit-roomview/pkg/types"
	"github.com/livekit/livekit-roomview/pkg/visibleset"
)

const (
	generatedCLIFlagUsage = "generated"

	devAPIKey    = "devkey"
	devAPISecret = "secret"
)

var (
	ErrURLNotSet         = errors.New("url must be provided")
	ErrCredentialsNotSet = errors.New("either a token or api key and secret must be provided")
	ErrRoomNotSet        = errors.New("room name and identity are required to create a token")
)

var DefaultStunServers = []string{
	"stun.l.google.com:19302",
	"stun1.l.google.com:19302",
}

type Config struct {
	URL       string `yaml:"url,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	APISecret string `yaml:"api_secret,omitempty"`

	Room      RoomConfig      `yaml:"room,omitempty"`
	Stage     StageConfig     `yaml:"stage,omitempty"`
	Devices   DevicesConfig   `yaml:"devices,omitempty"`
	RTC       RTCConfig       `yaml:"rtc,omitempty"`
	Recording RecordingConfig `yaml:"recording,omitempty"`

	PrometheusPort uint32        `yaml:"prometheus_port,omitempty"`
	Logging        LoggingConfig `yaml:"logging,omitempty"`
	Development    bool          `yaml:"development,omitempty"`
}

type RoomConfig struct {
	Name     string `yaml:"name,omitempty"`
	Identity string `yaml:"identity,omitempty"`
	// Token is used as is when set; otherwise one is minted from the api key
	Token           string        `yaml:"token,omitempty"`
	TokenTTL        time.Duration `yaml:"token_ttl,omitempty"`
	AutoSubscribe   bool          `yaml:"auto_subscribe,omitempty"`
	PublishAudio    bool          `yaml:"publish_audio,omitempty"`
	PublishVideo    bool          `yaml:"publish_video,omitempty"`
	StartAudioMuted bool          `yaml:"start_audio_muted,omitempty"`
	JoinTimeout     time.Duration `yaml:"join_timeout,omitempty"`
}

type StageConfig struct {
	// grid or speaker
	Layout string `yaml:"layout,omitempty"`
	// 0 lets the participant count pick the grid
	MaxGridCapacity int `yaml:"max_grid_capacity,omitempty"`
	// terminal views have no pixels; this picks desktop or compact
	ViewportWidth       int           `yaml:"viewport_width,omitempty"`
	RefreshInterval     time.Duration `yaml:"refresh_interval,omitempty"`
	BitrateInterval     time.Duration `yaml:"bitrate_interval,omitempty"`
	ProjectionCacheSize int           `yaml:"projection_cache_size,omitempty"`
}

type DevicesConfig struct {
	// directory scanned for .ogg, .ivf and .h264 media files
	Dir         string `yaml:"dir,omitempty"`
	AudioInput  string `yaml:"audio_input,omitempty"`
	VideoInput  string `yaml:"video_input,omitempty"`
	AudioOutput string `yaml:"audio_output,omitempty"`
}

type RTCConfig struct {
	STUNServers []string          `yaml:"stun_servers,omitempty"`
	ICEServers  []ICEServerConfig `yaml:"ice_servers,omitempty"`
}

type ICEServerConfig struct {
	URLs       []string `yaml:"urls,omitempty"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

type RecordingConfig struct {
	// remote audio tracks are written to <dir>/<track sid>.ogg when set
	Dir string `yaml:"dir,omitempty"`
}

type LoggingConfig struct {
	logger.Config `yaml:",inline"`
	PionLevel     string `yaml:"pion_level,omitempty"`
}

var DefaultConfig = Config{
	URL: "http://localhost:7880",
	Room: RoomConfig{
		Identity:      "roomview",
		TokenTTL:      6 * time.Hour,
		AutoSubscribe: true,
		JoinTimeout:   15 * time.Second,
	},
	Stage: StageConfig{
		Layout:              string(stage.PreferGrid),
		ViewportWidth:       1280,
		RefreshInterval:     200 * time.Millisecond,
		BitrateInterval:     time.Second,
		ProjectionCacheSize: 64,
	},
	Devices: DevicesConfig{
		Dir: "~/.livekit/media",
	},
	RTC: RTCConfig{
		STUNServers: DefaultStunServers,
	},
	Logging: LoggingConfig{
		PionLevel: "error",
	},
}

func NewConfig(confString string, strictMode bool, c *cli.Context, baseFlags []cli.Flag) (*Config, error) {
	// start with defaults
	marshalled, err := yaml.Marshal(&DefaultConfig)
	if err != nil {
		return nil, err
	}

	var conf Config
	err = yaml.Unmarshal(marshalled, &conf)
	if err != nil {
		return nil, err
	}

	if confString != "" {
		decoder := yaml.NewDecoder(strings.NewReader(confString))
		decoder.KnownFields(strictMode)
		if err := decoder.Decode(&conf); err != nil {
			return nil, fmt.Errorf("could not parse config: %v", err)
		}
	}

	if c != nil {
		if err := conf.updateFromCLI(c, baseFlags); err != nil {
			return nil, err
		}
	}

	// expand env vars in paths
	for _, path := range []*string{&conf.Devices.Dir, &conf.Recording.Dir} {
		if *path == "" {
			continue
		}
		expanded, err := homedir.Expand(os.ExpandEnv(*path))
		if err != nil {
			return nil, err
		}
		*path = expanded
	}

	if conf.Development {
		if conf.APIKey == "" && conf.APISecret == "" {
			conf.APIKey = devAPIKey
			conf.APISecret = devAPISecret
		}
		if conf.Logging.Level == "" {
			conf.Logging.Level = "debug"
		}
	}
	if conf.Logging.PionLevel != "" {
		if conf.Logging.ComponentLevels == nil {
			conf.Logging.ComponentLevels = map[string]string{}
		}
		conf.Logging.ComponentLevels["transport.pion"] = conf.Logging.PionLevel
		conf.Logging.ComponentLevels["pion"] = conf.Logging.PionLevel
	}

	if err := conf.Stage.Validate(); err != nil {
		return nil, errors.Wrap(err, "could not validate stage config")
	}
	return &conf, nil
}

func (s *StageConfig) Validate() error {
	if _, err := stage.ParsePreference(s.Layout); err != nil {
		return err
	}
	if s.MaxGridCapacity < 0 || s.MaxGridCapacity > visibleset.MaxGridCapacity {
		return fmt.Errorf("max_grid_capacity must be between 0 and %d", visibleset.MaxGridCapacity)
	}
	if s.RefreshInterval < 0 || s.BitrateInterval < 0 {
		return errors.New("intervals must not be negative")
	}
	return nil
}

func (s *StageConfig) Preference() stage.Preference {
	pref, _ := stage.ParsePreference(s.Layout)
	return pref
}

func (s *StageConfig) Viewport() stage.Viewport {
	return stage.ClassifyViewport(s.ViewportWidth)
}

// ConnectOptions maps the room section onto what a Connector needs.
func (conf *Config) ConnectOptions() types.ConnectOptions {
	return types.ConnectOptions{
		AutoSubscribe: conf.Room.AutoSubscribe,
		PublishAudio:  conf.Room.PublishAudio,
		PublishVideo:  conf.Room.PublishVideo,
		AudioDeviceID: conf.Devices.AudioInput,
		VideoDeviceID: conf.Devices.VideoInput,
	}
}

// ICEServers merges the configured STUN hosts with any explicit ICE servers.
func (r *RTCConfig) ToICEServers() []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	if len(r.STUNServers) > 0 {
		urls := make([]string, 0, len(r.STUNServers))
		for _, s := range r.STUNServers {
			if !strings.HasPrefix(s, "stun:") {
				s = "stun:" + s
			}
			urls = append(urls, s)
		}
		servers = append(servers, webrtc.ICEServer{URLs: urls})
	}
	for _, s := range r.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return servers
}

// AccessToken returns the configured token, or mints a room join token
// from the api key and secret.
func (conf *Config) AccessToken() (string, error) {
	if conf.URL == "" {
		return "", ErrURLNotSet
	}
	if conf.Room.Token != "" {
		return conf.Room.Token, nil
	}
	if conf.APIKey == "" || conf.APISecret == "" {
		return "", ErrCredentialsNotSet
	}
	if conf.Room.Name == "" || conf.Room.Identity == "" {
		return "", ErrRoomNotSet
	}
	return CreateToken(conf.APIKey, conf.APISecret, conf.Room.Name, conf.Room.Identity, conf.Room.TokenTTL)
}

func CreateToken(apiKey, apiSecret, room, identity string, ttl time.Duration) (string, error) {
	at := auth.NewAccessToken(apiKey, apiSecret).
		AddGrant(&auth.VideoGrant{
			RoomJoin: true,
			Room:     room,
		}).
		SetIdentity(identity)
	if ttl > 0 {
		at.SetValidFor(ttl)
	}
	token, err := at.ToJWT()
	if err != nil {
		return "", errors.Wrap(err, "could not create access token")
	}
	return token, nil
}

type configNode struct {
	TypeNode  reflect.Value
	TagPrefix string
}

func (conf *Config) ToCLIFlagNames(existingFlags []cli.Flag) map[string]reflect.Value {
	existingFlagNames := map[string]bool{}
	for _, flag := range existingFlags {
		for _, flagName := range flag.Names() {
			existingFlagNames[flagName] = true
		}
	}

	flagNames := map[string]reflect.Value{}
	var currNode configNode
	nodes := []configNode{{reflect.ValueOf(conf).Elem(), ""}}
	for len(nodes) > 0 {
		currNode, nodes = nodes[0], nodes[1:]
		for i := 0; i < currNode.TypeNode.NumField(); i++ {
			// inspect yaml tag from struct field to get path
			field := currNode.TypeNode.Type().Field(i)
			yamlTagArray := strings.SplitN(field.Tag.Get("yaml"), ",", 2)
			yamlTag := yamlTagArray[0]
			isInline := false
			if len(yamlTagArray) > 1 && yamlTagArray[1] == "inline" {
				isInline = true
			}
			if (yamlTag == "" && (!isInline || currNode.TagPrefix == "")) || yamlTag == "-" {
				continue
			}
			yamlPath := yamlTag
			if currNode.TagPrefix != "" {
				if isInline {
					yamlPath = currNode.TagPrefix
				} else {
					yamlPath = fmt.Sprintf("%s.%s", currNode.TagPrefix, yamlTag)
				}
			}
			if existingFlagNames[yamlPath] {
				continue
			}

			// map flag name to value
			value := currNode.TypeNode.Field(i)
			if value.Kind() == reflect.Struct {
				nodes = append(nodes, configNode{value, yamlPath})
			} else {
				flagNames[yamlPath] = value
			}
		}
	}

	return flagNames
}

func GenerateCLIFlags(existingFlags []cli.Flag, hidden bool) ([]cli.Flag, error) {
	blankConfig := &Config{}
	flags := make([]cli.Flag, 0)
	for name, value := range blankConfig.ToCLIFlagNames(existingFlags) {
		kind := value.Kind()
		if kind == reflect.Ptr {
			kind = value.Type().Elem().Kind()
		}

		var flag cli.Flag
		envVar := fmt.Sprintf("ROOMVIEW_%s", strings.ToUpper(strings.Replace(name, ".", "_", -1)))

		switch kind {
		case reflect.Bool:
			flag = &cli.BoolFlag{
				Name:   name,
				Usage:  generatedCLIFlagUsage,
				Hidden: hidden,
			}
		case reflect.String:
			flag = &cli.StringFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case reflect.Int, reflect.Int32:
			flag = &cli.IntFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case reflect.Int64:
			if value.Type() == reflect.TypeOf(time.Duration(0)) {
				flag = &cli.DurationFlag{
					Name:    name,
					EnvVars: []string{envVar},
					Usage:   generatedCLIFlagUsage,
					Hidden:  hidden,
				}
				break
			}
			flag = &cli.Int64Flag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case reflect.Uint8, reflect.Uint16, reflect.Uint32:
			flag = &cli.UintFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case reflect.Uint64:
			flag = &cli.Uint64Flag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case reflect.Float32, reflect.Float64:
			flag = &cli.Float64Flag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case reflect.Slice:
			if value.Type().Elem().Kind() != reflect.String {
				continue
			}
			flag = &cli.StringSliceFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case reflect.Map, reflect.Struct:
			continue
		default:
			return flags, fmt.Errorf("cli flag generation unsupported for config type: %s is a %s", name, kind.String())
		}

		flags = append(flags, flag)
	}

	return flags, nil
}

func (conf *Config) updateFromCLI(c *cli.Context, baseFlags []cli.Flag) error {
	generatedFlagNames := conf.ToCLIFlagNames(baseFlags)
	for _, flag := range c.App.Flags {
		flagName := flag.Names()[0]

		// the `c.App.Name != "test"` check is needed because `c.IsSet(...)` is always false in unit tests
		if !c.IsSet(flagName) && c.App.Name != "test" {
			continue
		}

		configValue, ok := generatedFlagNames[flagName]
		if !ok {
			continue
		}

		kind := configValue.Kind()
		if kind == reflect.Ptr {
			// instantiate value to be set
			configValue.Set(reflect.New(configValue.Type().Elem()))

			kind = configValue.Type().Elem().Kind()
			configValue = configValue.Elem()
		}

		switch kind {
		case reflect.Bool:
			configValue.SetBool(c.Bool(flagName))
		case reflect.String:
			configValue.SetString(c.String(flagName))
		case reflect.Int, reflect.Int32:
			configValue.SetInt(c.Int64(flagName))
		case reflect.Int64:
			if configValue.Type() == reflect.TypeOf(time.Duration(0)) {
				configValue.SetInt(int64(c.Duration(flagName)))
			} else {
				configValue.SetInt(c.Int64(flagName))
			}
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			configValue.SetUint(c.Uint64(flagName))
		case reflect.Float32, reflect.Float64:
			configValue.SetFloat(c.Float64(flagName))
		case reflect.Slice:
			configValue.Set(reflect.ValueOf(c.StringSlice(flagName)))
		default:
			return fmt.Errorf("unsupported generated cli flag type for config: %s is a %s", flagName, kind.String())
		}
	}

	if c.IsSet("dev") {
		conf.Development = c.Bool("dev")
	}
	if c.IsSet("url") {
		conf.URL = c.String("url")
	}
	if c.IsSet("api-key") {
		conf.APIKey = c.String("api-key")
	}
	if c.IsSet("api-secret") {
		conf.APISecret = c.String("api-secret")
	}
	if c.IsSet("room") {
		conf.Room.Name = c.String("room")
	}
	if c.IsSet("identity") {
		conf.Room.Identity = c.String("identity")
	}
	if c.IsSet("token") {
		conf.Room.Token = c.String("token")
	}
	if c.IsSet("layout") {
		conf.Stage.Layout = c.String("layout")
	}
	if c.IsSet("media-dir") {
		conf.Devices.Dir = c.String("media-dir")
	}
	if c.IsSet("record-dir") {
		conf.Recording.Dir = c.String("record-dir")
	}
	return nil
}

// Note: only pass in logr.Logger with default depth
func SetLogger(l logger.Logger) {
	logger.SetLogger(l, "roomview")
}

func InitLoggerFromConfig(config *LoggingConfig) {
	logger.InitFromConfig(&config.Config, "roomview")
}
