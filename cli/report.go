package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss/tree"
	"github.com/lambdaforge/lambdaforge/core"
	"github.com/lambdaforge/lambdaforge/provision"
	"github.com/lambdaforge/lambdaforge/validate"
)

// renderFailure prints a fatal run error. Extraction and validation failures
// include the raw model reply of the failing step so the user can see what came back.
func renderFailure(w io.Writer, err error) {
	fmt.Fprintln(w, failStyle.Render("Error: "+err.Error()))

	var missing *core.MissingBlockError
	if errors.As(err, &missing) {
		renderReply(w, missing.Step, missing.Reply)
		return
	}

	var invalid *core.InvalidBlockError
	if errors.As(err, &invalid) {
		var verr *validate.Error
		if errors.As(invalid.Err, &verr) {
			for _, d := range verr.Diagnostics {
				fmt.Fprintln(w, warnStyle.Render("  "+d.String()))
			}
		}
		renderReply(w, invalid.Step, invalid.Reply)
		return
	}

	var cmdErr *provision.CommandError
	if errors.As(err, &cmdErr) && strings.HasPrefix(cmdErr.Cmd, "git push") {
		fmt.Fprintln(w, warnStyle.Render("Please ensure the remote repository exists, you have push access, and your git credentials are configured."))
	}
}

func renderReply(w io.Writer, step core.StepType, reply string) {
	fmt.Fprintln(w, faintStyle.Render(fmt.Sprintf("AI response (%s) was:", step)))
	fmt.Fprintln(w, reply)
}

// projectTree renders a ListFiles structure with directories first, each
// group sorted by name.
func projectTree(root string, structure map[string]interface{}) *tree.Tree {
	t := tree.Root(root)
	var dirs, files []string
	for name, child := range structure {
		if _, ok := child.(map[string]interface{}); ok {
			dirs = append(dirs, name)
		} else {
			files = append(files, name)
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)
	for _, name := range dirs {
		t.Child(projectTree(name+"/", structure[name].(map[string]interface{})))
	}
	for _, name := range files {
		t.Child(name)
	}
	return t
}

func renderSummary(w io.Writer, s core.Summary, published bool) {
	fmt.Fprintln(w)
	for _, warn := range s.Warnings {
		fmt.Fprintln(w, warnStyle.Render("Warning: "+warn))
	}
	for _, r := range s.Replies {
		renderReply(w, r.Step, r.Reply)
	}
	if len(s.Tree) > 0 {
		fmt.Fprintln(w, projectTree(".", s.Tree))
	}
	fmt.Fprintf(w, "Files written: %s\n", strings.Join(s.Written, ", "))
	fmt.Fprintf(w, "S3 state bucket: %s\n", nameStyle.Render(s.StateBucket))
	fmt.Fprintf(w, "DynamoDB lock table: %s\n", nameStyle.Render(s.LockTable))
	if published {
		fmt.Fprintf(w, "Repository: %s\n", nameStyle.Render(s.RemoteURL))
		fmt.Fprintln(w, faintStyle.Render("Check your GitHub Actions workflow for deployment status."))
	}
}
