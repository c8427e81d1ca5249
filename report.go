package xbar

// report.go gathers what the receivers observed during a run into
// serializable report structures.  Serialization to json or yaml is
// selected by the extension of the output file name.

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

// ReceiverReport summarizes the traffic one receiver terminated
type ReceiverReport struct {
	// receiver device name
	Name string `json:"name" yaml:"name"`

	// messages delivered
	Received int `json:"received" yaml:"received"`

	// mean ticks between generation and delivery
	MeanAge float64 `json:"meanage" yaml:"meanage"`

	// mean ticks between consecutive deliveries
	MeanDisparity float64 `json:"meandisparity" yaml:"meandisparity"`

	// deliveries per generating device
	BySource map[string]int `json:"bysource" yaml:"bysource"`
}

// RunReport summarizes one simulation run across all receivers
type RunReport struct {
	Network       string           `json:"network" yaml:"network"`
	Ticks         int              `json:"ticks" yaml:"ticks"`
	Messages      int              `json:"messages" yaml:"messages"`
	MeanAge       float64          `json:"meanage" yaml:"meanage"`
	MinAge        int              `json:"minage" yaml:"minage"`
	MaxAge        int              `json:"maxage" yaml:"maxage"`
	MeanDisparity float64          `json:"meandisparity" yaml:"meandisparity"`
	Receivers     []ReceiverReport `json:"receivers" yaml:"receivers"`
}

// BuildReport computes the run report from the receivers' records
func (net *Network) BuildReport() *RunReport {
	rpt := new(RunReport)
	rpt.Network = net.name
	rpt.Ticks = net.elapsed
	rpt.Receivers = make([]ReceiverReport, 0, len(net.receivers))

	allAges := make([]float64, 0)
	allDisparities := make([]float64, 0)
	minAge, maxAge := 0, 0

	for _, rcv := range net.receivers {
		ages := make([]float64, 0, len(rcv.records))
		disparities := make([]float64, 0)
		bySource := make(map[string]int)

		for idx, rec := range rcv.records {
			ages = append(ages, float64(rec.age))
			bySource[rec.source.DevName()]++
			if idx > 0 {
				disparities = append(disparities, float64(rec.arrival-rcv.records[idx-1].arrival))
			}

			if rpt.Messages == 0 || rec.age < minAge {
				minAge = rec.age
			}
			if rpt.Messages == 0 || rec.age > maxAge {
				maxAge = rec.age
			}
			rpt.Messages++
		}

		rcvRpt := ReceiverReport{Name: rcv.DevName(), Received: len(rcv.records), BySource: bySource}
		if len(ages) > 0 {
			rcvRpt.MeanAge = stat.Mean(ages, nil)
		}
		if len(disparities) > 0 {
			rcvRpt.MeanDisparity = stat.Mean(disparities, nil)
		}
		rpt.Receivers = append(rpt.Receivers, rcvRpt)

		allAges = append(allAges, ages...)
		allDisparities = append(allDisparities, disparities...)
	}

	if len(allAges) > 0 {
		rpt.MeanAge = stat.Mean(allAges, nil)
		rpt.MinAge = minAge
		rpt.MaxAge = maxAge
	}
	if len(allDisparities) > 0 {
		rpt.MeanDisparity = stat.Mean(allDisparities, nil)
	}
	return rpt
}

// WriteToFile stores the report in the named file, as yaml or json
// depending on the file name extension
func (rpt *RunReport) WriteToFile(filename string) error {
	return writeByExt(filename, rpt)
}

// MaximalSample records the rounds-to-maximal distribution for one
// switch size in the maximal-iterations harness
type MaximalSample struct {
	// ports per side of the crossbar
	Ports int `json:"ports" yaml:"ports"`

	// rounds PIM took to reach a maximal matching, one entry per trial
	Rounds []int `json:"rounds" yaml:"rounds"`

	// mean of Rounds
	MeanRounds float64 `json:"meanrounds" yaml:"meanrounds"`
}

// MaximalReport carries the full harness sweep
type MaximalReport struct {
	Trials  int             `json:"trials" yaml:"trials"`
	Samples []MaximalSample `json:"samples" yaml:"samples"`
}

// WriteToFile stores the report in the named file, as yaml or json
// depending on the file name extension
func (rpt *MaximalReport) WriteToFile(filename string) error {
	return writeByExt(filename, rpt)
}

// writeByExt serializes v into the named file, yaml or json by
// extension
func writeByExt(filename string, v any) error {
	pathExt := path.Ext(filename)

	var bytes []byte
	var merr error
	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(v)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(v, "", "\t")
	} else {
		merr = fmt.Errorf("unrecognized extension on output file %s", filename)
	}
	if merr != nil {
		return merr
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		return cerr
	}
	defer f.Close()

	_, werr := f.Write(bytes)
	return werr
}
