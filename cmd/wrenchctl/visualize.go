package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/datamodel"
	"github.com/wrenchsim/wrench/pkg/storage"
	"github.com/wrenchsim/wrench/pkg/visualization"
	"github.com/wrenchsim/wrench/pkg/xrootd"
)

var visualizeCmd = &cobra.Command{
	Use:   "visualize",
	Short: "print a Mermaid diagram of the bundled demo workflow or XRootD tree",
	RunE:  runVisualize,
}

func init() {
	visualizeCmd.Flags().String("target", "workflow", `what to render: "workflow" or "xrootd"`)
}

func runVisualize(cmd *cobra.Command, _ []string) error {
	target, _ := cmd.Flags().GetString("target")

	switch target {
	case "workflow":
		wf := datamodel.NewWorkflow()
		taskIDs := []string{"t1", "t2", "t3"}
		var prev string
		for _, id := range taskIDs {
			task, err := datamodel.NewWorkflowTask(id, 1e9, 1, 1, 1<<20, datamodel.Amdahl(0))
			if err != nil {
				return err
			}
			if err := wf.AddTask(task); err != nil {
				return err
			}
			if prev != "" {
				if err := wf.AddControlDependency(prev, id); err != nil {
					return err
				}
			}
			prev = id
		}
		fmt.Print(visualization.RenderWorkflow(wf, visualization.DefaultRenderOptions()))
		return nil

	case "xrootd":
		sim := simcore.New(cmd.Context())
		log := wlog.Default()
		root := xrootd.NewNode("root", time.Minute)
		super := xrootd.NewNode("super1", time.Minute)
		root.AddChild(super)
		for i := 0; i < 2; i++ {
			host := sim.AddHost(simcore.NewHost(fmt.Sprintf("leaf-host-%d", i), 1, 1e9, 1<<30, 1e9, sim.Clock()))
			svc := storage.New(sim, fmt.Sprintf("leaf%d", i), host, 1<<40, storage.Properties{}, log)
			super.AddChild(xrootd.NewLeaf(fmt.Sprintf("leaf%d", i), svc, time.Minute))
		}
		fmt.Print(visualization.RenderXRootDTree(root, visualization.DefaultRenderOptions()))
		return nil

	default:
		return fmt.Errorf("unknown visualize target %q (want \"workflow\" or \"xrootd\")", target)
	}
}
