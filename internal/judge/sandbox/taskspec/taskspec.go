// Package taskspec defines the JSON documents exchanged with the
// in-container watchdog: the task file the runner stages at
// /home/guest/task.json and the single report the watchdog prints to
// stdout. Both directions are decoded strictly; an unknown or missing
// field is an error, never a zero value.
package taskspec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// TaskPath is where the runner places the task file inside the sandbox.
const TaskPath = "/home/guest/task.json"

// Task is the watchdog input document.
type Task struct {
	Command       string `json:"command"`
	Stdin         string `json:"stdin"`
	TimeoutMS     int64  `json:"timeoutMS"`
	MemoryLimitMB int64  `json:"memoryLimitMB"`
	UID           int    `json:"uid"`
	GID           int    `json:"gid"`
}

// Report is the watchdog output document. The three flags are
// independent of ExitCode: a killed child still reports the exit status
// the kernel derived for it.
type Report struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	TimeMS   int64  `json:"timeMS"`
	MemoryKB int64  `json:"memoryKB"`
	TLE      bool   `json:"TLE"`
	MLE      bool   `json:"MLE"`
	OLE      bool   `json:"OLE"`
}

// EncodeTask serializes a task document.
func EncodeTask(t Task) ([]byte, error) {
	return json.MarshalIndent(t, "", "    ")
}

// DecodeTask parses a task document, rejecting unknown fields, missing
// fields, and trailing content.
func DecodeTask(data []byte) (Task, error) {
	var probe struct {
		Command       *string `json:"command"`
		Stdin         *string `json:"stdin"`
		TimeoutMS     *int64  `json:"timeoutMS"`
		MemoryLimitMB *int64  `json:"memoryLimitMB"`
		UID           *int    `json:"uid"`
		GID           *int    `json:"gid"`
	}
	if err := decodeStrict(data, &probe); err != nil {
		return Task{}, err
	}
	if probe.Command == nil || probe.Stdin == nil || probe.TimeoutMS == nil ||
		probe.MemoryLimitMB == nil || probe.UID == nil || probe.GID == nil {
		return Task{}, fmt.Errorf("task document is missing required fields")
	}
	return Task{
		Command:       *probe.Command,
		Stdin:         *probe.Stdin,
		TimeoutMS:     *probe.TimeoutMS,
		MemoryLimitMB: *probe.MemoryLimitMB,
		UID:           *probe.UID,
		GID:           *probe.GID,
	}, nil
}

// EncodeReport serializes a report document.
func EncodeReport(r Report) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeReport parses the watchdog's stdout, rejecting unknown fields,
// missing fields, and trailing content.
func DecodeReport(data []byte) (Report, error) {
	var probe struct {
		ExitCode *int    `json:"exit_code"`
		Stdout   *string `json:"stdout"`
		Stderr   *string `json:"stderr"`
		TimeMS   *int64  `json:"timeMS"`
		MemoryKB *int64  `json:"memoryKB"`
		TLE      *bool   `json:"TLE"`
		MLE      *bool   `json:"MLE"`
		OLE      *bool   `json:"OLE"`
	}
	if err := decodeStrict(data, &probe); err != nil {
		return Report{}, err
	}
	if probe.ExitCode == nil || probe.Stdout == nil || probe.Stderr == nil ||
		probe.TimeMS == nil || probe.MemoryKB == nil ||
		probe.TLE == nil || probe.MLE == nil || probe.OLE == nil {
		return Report{}, fmt.Errorf("watchdog report is missing required fields")
	}
	return Report{
		ExitCode: *probe.ExitCode,
		Stdout:   *probe.Stdout,
		Stderr:   *probe.Stderr,
		TimeMS:   *probe.TimeMS,
		MemoryKB: *probe.MemoryKB,
		TLE:      *probe.TLE,
		MLE:      *probe.MLE,
		OLE:      *probe.OLE,
	}, nil
}

// decodeStrict decodes exactly one JSON document into v.
func decodeStrict(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("trailing content after JSON document")
	}
	return nil
}
