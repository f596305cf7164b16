package conf

// applyDefaults fills zero-valued fields left unset by the config file or
// environment with sane operating defaults. Runs after unmarshal so an
// explicit zero in the file (e.g. Volume: 0) is indistinguishable from
// "not set" for fields where zero is never a useful value.
func applyDefaults(s *Settings) {
	if s.Audio.SampleRate == 0 {
		s.Audio.SampleRate = 48000
	}
	if s.Audio.Channels == 0 {
		s.Audio.Channels = 2
	}
	if s.Audio.BitDepth == 0 {
		s.Audio.BitDepth = 16
	}
	if s.Audio.Volume == 0 {
		s.Audio.Volume = 100
	}

	if s.Sync.DeadbandMicros == 0 {
		s.Sync.DeadbandMicros = 2000
	}
	if s.Sync.ReanchorMicros == 0 {
		s.Sync.ReanchorMicros = 500000
	}
	if s.Sync.ReanchorCooldownSec == 0 {
		s.Sync.ReanchorCooldownSec = 5
	}
	if s.Sync.MaxCorrectionPct == 0 {
		s.Sync.MaxCorrectionPct = 0.04
	}

	if s.Metrics.Listen == "" {
		s.Metrics.Listen = ":9110"
	}

	if s.Log.Path == "" {
		s.Log.Path = "logs/syncplayer.log"
	}
	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
	if s.Log.MaxSizeMB == 0 {
		s.Log.MaxSizeMB = 20
	}
	if s.Log.MaxBackups == 0 {
		s.Log.MaxBackups = 5
	}
	if s.Log.MaxAgeDays == 0 {
		s.Log.MaxAgeDays = 28
	}
}
