package framesim

import (
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override the config
// file, e.g. FRAMESIM_FRAMES.
const EnvPrefix = "FRAMESIM"

// Config describes the allocators and workload of a simulated frame loop.
type Config struct {
	// Frames is the number of frames to run.
	Frames int `yaml:"frames" envconfig:"FRAMES"`
	// LogInterval is the number of frames between progress log lines. 0 disables them.
	LogInterval int `yaml:"log_interval" envconfig:"LOG_INTERVAL"`
	// Seed makes the per-frame request sizes reproducible.
	Seed uint64 `yaml:"seed" envconfig:"SEED"`

	// Alignment applies to every allocator in the loop.
	Alignment int `yaml:"alignment" envconfig:"ALIGNMENT"`
	// Mmap backs owned regions with anonymous mappings instead of the Go heap.
	Mmap bool `yaml:"mmap" envconfig:"MMAP"`

	// FrameArenaSize is the per-frame bump arena, reset at the start of every frame.
	FrameArenaSize datasize.ByteSize `yaml:"frame_arena_size" envconfig:"FRAME_ARENA_SIZE"`
	// VerticesPerFrame is the number of float32 vertex components taken from the frame arena.
	VerticesPerFrame int `yaml:"vertices_per_frame" envconfig:"VERTICES_PER_FRAME"`

	// OverflowArenaSize backs the fixed scratch buffer when it runs out.
	OverflowArenaSize datasize.ByteSize `yaml:"overflow_arena_size" envconfig:"OVERFLOW_ARENA_SIZE"`
	// ScratchAllocsPerFrame is the number of scratch requests per frame.
	ScratchAllocsPerFrame int `yaml:"scratch_allocs_per_frame" envconfig:"SCRATCH_ALLOCS_PER_FRAME"`
	// MaxScratchAlloc bounds the size of a single scratch request.
	MaxScratchAlloc datasize.ByteSize `yaml:"max_scratch_alloc" envconfig:"MAX_SCRATCH_ALLOC"`

	// DrawRecords is the capacity of the draw record pool.
	DrawRecords int `yaml:"draw_records" envconfig:"DRAW_RECORDS"`
	// DrawsPerFrame is the number of draw records requested per frame.
	DrawsPerFrame int `yaml:"draws_per_frame" envconfig:"DRAWS_PER_FRAME"`
	// ReleaseLatency is how many frames a draw record stays in flight before
	// it is returned to the pool.
	ReleaseLatency int `yaml:"release_latency" envconfig:"RELEASE_LATENCY"`

	// RenderQueueCapacity is the initial capacity of the render queue stack.
	RenderQueueCapacity int `yaml:"render_queue_capacity" envconfig:"RENDER_QUEUE_CAPACITY"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		Frames:                600,
		LogInterval:           60,
		Seed:                  1,
		Alignment:             16,
		FrameArenaSize:        1 * datasize.MB,
		VerticesPerFrame:      16 * 1024,
		OverflowArenaSize:     256 * datasize.KB,
		ScratchAllocsPerFrame: 32,
		MaxScratchAlloc:       512 * datasize.B,
		DrawRecords:           1024,
		DrawsPerFrame:         256,
		ReleaseLatency:        2,
		RenderQueueCapacity:   128,
	}
}

// Validate checks the config for values the loop cannot run with.
func (cfg *Config) Validate() error {
	switch {
	case cfg.Frames <= 0:
		return errors.Errorf("frames must be positive, got %d", cfg.Frames)
	case cfg.LogInterval < 0:
		return errors.Errorf("log_interval must not be negative, got %d", cfg.LogInterval)
	case cfg.Alignment <= 0 || cfg.Alignment&(cfg.Alignment-1) != 0:
		return errors.Errorf("alignment must be a power of two, got %d", cfg.Alignment)
	case cfg.FrameArenaSize == 0:
		return errors.New("frame_arena_size must be positive")
	case cfg.VerticesPerFrame < 0:
		return errors.Errorf("vertices_per_frame must not be negative, got %d", cfg.VerticesPerFrame)
	case cfg.ScratchAllocsPerFrame < 0:
		return errors.Errorf("scratch_allocs_per_frame must not be negative, got %d", cfg.ScratchAllocsPerFrame)
	case cfg.MaxScratchAlloc == 0:
		return errors.New("max_scratch_alloc must be positive")
	case cfg.DrawRecords <= 0:
		return errors.Errorf("draw_records must be positive, got %d", cfg.DrawRecords)
	case cfg.DrawsPerFrame < 0:
		return errors.Errorf("draws_per_frame must not be negative, got %d", cfg.DrawsPerFrame)
	case cfg.ReleaseLatency < 0:
		return errors.Errorf("release_latency must not be negative, got %d", cfg.ReleaseLatency)
	case cfg.RenderQueueCapacity < 0:
		return errors.Errorf("render_queue_capacity must not be negative, got %d", cfg.RenderQueueCapacity)
	}
	return nil
}

// LoadConfig starts from DefaultConfig, applies the YAML file at path if
// path is not empty, then environment overrides, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "reading config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrap(err, "unmarshaling config file")
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parsing environment variables")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}
