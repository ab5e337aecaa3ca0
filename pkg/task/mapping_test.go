package task

import "testing"

func TestMapVerbToTool(t *testing.T) {
	cases := []struct {
		description string
		want        string
		ok          bool
	}{
		{"list the files in this directory", "file_list", true},
		{"read the file config.yaml", "file_read", true},
		{"write a new file for the report", "file_write", true},
		{"create a file named notes.txt", "file_write", true},
		{"delete the file tmp.log", "file_delete", true},
		{"copy the file to backup", "file_copy", true},
		{"move the file to archive", "file_move", true},
		{"check git status", "git_status", true},
		{"show git diff", "git_diff", true},
		{"show git log", "git_log", true},
		{"search the code for TODO", "code_search", true},
		{"search for a file named main.go", "file_search", true},
		{"run the build command", "command_execute", true},
		{"execute the deploy script", "command_execute", true},
		{"bake a cake", "", false},
	}

	for _, c := range cases {
		t.Run(c.description, func(t *testing.T) {
			got, ok := MapVerbToTool(c.description)
			if ok != c.ok {
				t.Fatalf("ok = %v, want %v", ok, c.ok)
			}
			if got != c.want {
				t.Fatalf("tool = %q, want %q", got, c.want)
			}
		})
	}
}

func TestMapVerbToTool_PriorityOrder(t *testing.T) {
	// "list" + "file" should win over a later rule even if both substrings
	// for a later rule happen to also be present.
	got, ok := MapVerbToTool("list files then search code")
	if !ok || got != "file_list" {
		t.Fatalf("got %q, %v; want file_list, true", got, ok)
	}
}
