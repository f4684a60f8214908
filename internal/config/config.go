// internal/config/config.go
package config

type Config struct {
	Trace  TraceConfig  `yaml:"trace"`
	Stats  StatsConfig  `yaml:"stats"`
	GPIO   GPIOConfig   `yaml:"gpio"`
	Output OutputConfig `yaml:"output"`
	Host   HostConfig   `yaml:"host"`
	Log    LogConfig    `yaml:"log"`
}

// ---- TRACE ----

type TraceConfig struct {
	Enabled           bool         `yaml:"enabled"`
	Capacity          int          `yaml:"capacity"`
	TimestampInterval uint64       `yaml:"timestamp_interval"` // 10, 100 or 1000
	MaxWidth          int          `yaml:"max_width"`
	PollMs            int          `yaml:"poll_ms"`
	Presets           PresetConfig `yaml:"presets"`
	Slots             []SlotConfig `yaml:"slots"`
}

// PresetConfig selects the default mask of every slot.
// Exactly one must be enabled.
type PresetConfig struct {
	Full   bool `yaml:"full"`   // all categories, per task
	Memory bool `yaml:"memory"` // heap events only
	Mixed  bool `yaml:"mixed"`  // full for detail slots, heap for the rest
}

type SlotConfig struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`

	// Pin is the trace GPIO pin; absent means unbound.
	Pin *uint8 `yaml:"pin"`

	// Mask overrides the preset (event.ParseMask names).
	Mask []string `yaml:"mask"`

	// GPIOEvents selects the events redirected to the pin.
	// Empty with a pin set redirects every enabled event.
	GPIOEvents []string `yaml:"gpio_events"`

	Detail bool `yaml:"detail"`
}

// ---- STATS ----

type StatsConfig struct {
	Cores         int      `yaml:"cores"`
	CounterWidth  int      `yaml:"counter_width"` // 32 or 64
	MaxPriorities uint32   `yaml:"max_priorities"`
	NameWidth     int      `yaml:"name_width"`
	IntervalMs    int      `yaml:"interval_ms"`
	Every         uint32   `yaml:"every"`
	LockTimeoutMs int      `yaml:"lock_timeout_ms"`
	MaxTasks      int      `yaml:"max_tasks"`
	Strict        bool     `yaml:"strict"`
	ReportMs      int      `yaml:"report_ms"` // 0 disables the periodic report
	Columns       []string `yaml:"columns"`
	Include       *uint64  `yaml:"include"` // task-number bitmask, absent means all
}

// ---- GPIO ----

type GPIOConfig struct {
	Backend string       `yaml:"backend"` // none | memory | modbus
	Modbus  ModbusConfig `yaml:"modbus"`
}

type ModbusConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`
	CoilBase  uint16 `yaml:"coil_base"`
}

// ---- OUTPUT ----

type OutputConfig struct {
	Color     *bool  `yaml:"color"`
	Websocket string `yaml:"websocket_listen"` // empty disables
}

// ---- HOST ----

type HostConfig struct {
	Processes []string `yaml:"processes"` // empty watches every process
	PollMs    int      `yaml:"poll_ms"`
}

// ---- LOG ----

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}
