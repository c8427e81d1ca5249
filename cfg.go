package xbar

// cfg.go holds the serializable description of an experiment and the
// functions that map its fields onto runtime objects

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ExperimentCfg names everything a run needs: the scheduling policy,
// the traffic pattern, and how long to run.  Instances are typically
// deserialized from a yaml or json experiment file.
type ExperimentCfg struct {
	// experiment name, also the name of the network and of its
	// random stream
	Name string `json:"name" yaml:"name"`

	// scheduling policy: "fifo", "parallel", or "statistical"
	Scheduler string `json:"scheduler" yaml:"scheduler"`

	// traffic pattern: "uniform" or "privileged"
	Pattern string `json:"pattern" yaml:"pattern"`

	// frames to simulate
	Frames int `json:"frames" yaml:"frames"`

	// file the run report is written to, empty for console only
	Report string `json:"report,omitempty" yaml:"report,omitempty"`
}

// ReadExperimentCfg deserializes an ExperimentCfg, from the named
// file when dict is empty and from dict otherwise
func ReadExperimentCfg(filename string, useYAML bool, dict []byte) (*ExperimentCfg, error) {
	var err error
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	example := ExperimentCfg{}
	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}

	if err != nil {
		return nil, err
	}

	return &example, nil
}

// WriteToFile stores the configuration in the named file, as yaml or
// json depending on the file name extension
func (xcfg *ExperimentCfg) WriteToFile(filename string) error {
	return writeByExt(filename, xcfg)
}

// CreateSchedulerByName maps a policy name from a configuration onto
// a fresh scheduler instance
func CreateSchedulerByName(policy string) (Scheduler, error) {
	switch policy {
	case "fifo":
		return CreateFIFOScheduler(), nil
	case "parallel", "pim":
		return CreateParallelScheduler(), nil
	case "statistical", "stat":
		return CreateStatisticalScheduler(), nil
	}
	return nil, fmt.Errorf("unrecognized scheduling policy %s", policy)
}

// BuildNetwork maps a traffic pattern name from a configuration onto
// a constructed network
func BuildNetwork(pattern, name string, sched Scheduler) (*Network, error) {
	switch pattern {
	case "uniform":
		return CreateUniformNetwork(name, sched), nil
	case "privileged":
		return CreatePrivilegedGeneratorNetwork(name, sched), nil
	}
	return nil, fmt.Errorf("unrecognized traffic pattern %s", pattern)
}
