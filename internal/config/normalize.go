// internal/config/normalize.go
package config

// Defaults applied by Normalize.
const (
	DefaultCapacity          = 256
	DefaultTimestampInterval = 1000
	DefaultPollMs            = 5
	DefaultCounterWidth      = 32
	DefaultMaxPriorities     = 25
	DefaultNameWidth         = 16
	DefaultIntervalMs        = 1000
	DefaultEvery             = 1000
	DefaultLockTimeoutMs     = 100
	DefaultMaxTasks          = 32
	DefaultModbusTimeoutMs   = 1000
	DefaultHostPollMs        = 1000

	// MaxTaskName is the longest task name the kernel keeps.
	MaxTaskName = 15
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ------------------------------------------------------------
	// TRACE
	// ------------------------------------------------------------

	t := &cfg.Trace
	if t.Capacity == 0 {
		t.Capacity = DefaultCapacity
	}
	if t.TimestampInterval == 0 {
		t.TimestampInterval = DefaultTimestampInterval
	}
	if t.PollMs == 0 {
		t.PollMs = DefaultPollMs
	}

	// Slot names are matched against kernel task names, which are
	// truncated at MaxTaskName.
	for i := range t.Slots {
		if len(t.Slots[i].Name) > MaxTaskName {
			t.Slots[i].Name = t.Slots[i].Name[:MaxTaskName]
		}
	}

	// ------------------------------------------------------------
	// STATS
	// ------------------------------------------------------------

	s := &cfg.Stats
	if s.CounterWidth == 0 {
		s.CounterWidth = DefaultCounterWidth
	}
	if s.MaxPriorities == 0 {
		s.MaxPriorities = DefaultMaxPriorities
	}
	if s.NameWidth == 0 {
		s.NameWidth = DefaultNameWidth
	}
	if s.IntervalMs == 0 {
		s.IntervalMs = DefaultIntervalMs
	}
	if s.Every == 0 {
		s.Every = DefaultEvery
	}
	if s.LockTimeoutMs == 0 {
		s.LockTimeoutMs = DefaultLockTimeoutMs
	}
	if s.MaxTasks == 0 {
		s.MaxTasks = DefaultMaxTasks
	}
	if s.Include == nil {
		all := ^uint64(0)
		s.Include = &all
	}

	// ------------------------------------------------------------
	// GPIO / OUTPUT / HOST / LOG
	// ------------------------------------------------------------

	if cfg.GPIO.Backend == "" {
		cfg.GPIO.Backend = "none"
	}
	if cfg.GPIO.Backend == "modbus" && cfg.GPIO.Modbus.TimeoutMs == 0 {
		cfg.GPIO.Modbus.TimeoutMs = DefaultModbusTimeoutMs
	}
	if cfg.Output.Color == nil {
		on := true
		cfg.Output.Color = &on
	}
	if cfg.Host.PollMs == 0 {
		cfg.Host.PollMs = DefaultHostPollMs
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
