package tools

// ToolState is the detection result for one catalog entry.
type ToolState struct {
	Tool      Tool `json:"tool"`
	Installed bool `json:"installed"`
}

// Status summarizes which tools are present on this machine.
type Status struct {
	Tools          []ToolState `json:"tools"`
	Installed      []string    `json:"installed"`
	NewlyInstalled []string    `json:"newly_installed"`
}

// DetectStatus scans the catalog against home. previouslySeen holds tool
// keys observed on an earlier scan, so the caller can highlight tools
// installed since then.
func DetectStatus(home string, previouslySeen map[string]bool) Status {
	var status Status
	for _, t := range All() {
		installed := t.IsInstalled(home)
		status.Tools = append(status.Tools, ToolState{Tool: t, Installed: installed})
		if !installed {
			continue
		}
		status.Installed = append(status.Installed, t.Key)
		if previouslySeen != nil && !previouslySeen[t.Key] {
			status.NewlyInstalled = append(status.NewlyInstalled, t.Key)
		}
	}
	return status
}
