package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/rasco/internal/presentation/cli/output"
)

// tasksetEntry describes one discoverable (util, idx) pair under a taskset
// root, without parsing or scheduling it.
type tasksetEntry struct {
	NumCPUs  int    `json:"num_cpus"`
	Util     string `json:"util"`
	Idx      int    `json:"idx"`
	NumFiles int    `json:"num_gml_files"`
}

var dataDirPattern = regexp.MustCompile(`^data-multi-m(\d+)-u([0-9.]+)$`)

// NewListCmd creates the list command for enumerating (util, idx) pairs
// under a taskset root without scheduling them.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list <taskset_path>",
		Short:   "List (utilization, index) pairs discoverable under a taskset root",
		Aliases: []string{"ls"},
		Long: `Scan <taskset_path> for data-multi-m{N}-u{util}/{idx}/ directories
containing Tau_*.gml files and list what's discoverable, without ingesting
or scheduling any of it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(args[0])
		},
	}
	return cmd
}

func runList(tasksetPath string) error {
	formatter := GetFormatter()

	entries, err := discoverTasksets(tasksetPath)
	if err != nil {
		return fmt.Errorf("scan %s: %w", tasksetPath, err)
	}

	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(map[string]any{"tasksets": entries, "count": len(entries)})
	}

	return renderTasksetsTable(formatter, entries)
}

// discoverTasksets walks root for data-multi-m{N}-u{util} directories and,
// within each, numeric index subdirectories containing at least one Tau_*.gml
// file. Grounded on the original's reliance on shell globbing over the same
// directory layout (spec.md §6); here it's done explicitly since there is no
// shell between the CLI and the task-set root.
func discoverTasksets(root string) ([]tasksetEntry, error) {
	topEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var out []tasksetEntry
	for _, top := range topEntries {
		if !top.IsDir() {
			continue
		}
		m := dataDirPattern.FindStringSubmatch(top.Name())
		if m == nil {
			continue
		}
		numCPUs, _ := strconv.Atoi(m[1])
		util := m[2]

		idxEntries, err := os.ReadDir(filepath.Join(root, top.Name()))
		if err != nil {
			continue
		}
		for _, idxEntry := range idxEntries {
			if !idxEntry.IsDir() {
				continue
			}
			idx, err := strconv.Atoi(idxEntry.Name())
			if err != nil {
				continue
			}
			gmlFiles, err := filepath.Glob(filepath.Join(root, top.Name(), idxEntry.Name(), "Tau_*.gml"))
			if err != nil || len(gmlFiles) == 0 {
				continue
			}
			out = append(out, tasksetEntry{NumCPUs: numCPUs, Util: util, Idx: idx, NumFiles: len(gmlFiles)})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Util != out[j].Util {
			return out[i].Util < out[j].Util
		}
		return out[i].Idx < out[j].Idx
	})

	return out, nil
}

func renderTasksetsTable(formatter *output.Formatter, entries []tasksetEntry) error {
	if len(entries) == 0 {
		formatter.Info("No task sets found")
		return nil
	}

	tableData := output.TableData{
		Columns: []output.TableColumn{
			{Header: "CPUS", Width: 6, Align: output.AlignRight},
			{Header: "UTIL", Width: 8, Align: output.AlignLeft},
			{Header: "IDX", Width: 6, Align: output.AlignRight},
			{Header: "GML FILES", Width: 10, Align: output.AlignRight},
		},
		Rows: make([][]string, 0, len(entries)),
	}

	for _, e := range entries {
		tableData.Rows = append(tableData.Rows, []string{
			strconv.Itoa(e.NumCPUs),
			e.Util,
			strconv.Itoa(e.Idx),
			strconv.Itoa(e.NumFiles),
		})
	}

	formatter.Println("")
	if err := formatter.Table(tableData); err != nil {
		return err
	}
	formatter.Println("")
	formatter.Println("%s", formatter.Dim(fmt.Sprintf("Total: %d taskset(s)", len(entries))))

	return nil
}
