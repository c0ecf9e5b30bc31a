// Package config holds the tunable options of spec §6, loaded from a
// plain YAML document — no CLI/flag surface, since partition and
// process wiring are out of this engine's scope.
package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Options collects every tunable named in spec §6.
type Options struct {
	MaxPartitionSize   uint64 `yaml:"max_partition_size"`
	MaxInMemPartitions int    `yaml:"max_in_mem_partitions"`
	TastePartitions    int    `yaml:"taste_partitions"`
	NumQuerySupervisors int   `yaml:"num_query_supervisors"`

	Segments       int `yaml:"segments"`
	MaxSegmentSize int `yaml:"max_segment_size"`
	ChunkSize      int `yaml:"chunk_size"`

	Index IndexOptions `yaml:"index"`
}

// IndexOptions bounds the argument index's per-offset storage (spec §6).
type IndexOptions struct {
	MaxStringSize        int `yaml:"max_string_size"`
	MaxContainerElements int `yaml:"max_container_elements"`
}

// Default returns the engine's built-in defaults.
func Default() Options {
	return Options{
		MaxPartitionSize:    1 << 20,
		MaxInMemPartitions:  10,
		TastePartitions:     1,
		NumQuerySupervisors: 1,
		Segments:            10,
		MaxSegmentSize:      128 << 20,
		ChunkSize:           8192,
		Index: IndexOptions{
			MaxStringSize:        1 << 20,
			MaxContainerElements: 256,
		},
	}
}

// Load decodes r over Default(), so an omitted field keeps its default
// rather than zeroing out.
func Load(r io.Reader) (Options, error) {
	opts := Default()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&opts); err != nil && err != io.EOF {
		return Options{}, fmt.Errorf("config: decode: %w", err)
	}
	return opts, nil
}
