package workspace

import (
	"fmt"

	"github.com/agentic-research/codepad/internal/graph"
)

// CreateFolder adds an empty, expanded folder under parentID ("" for a
// root) and logs "Created folder: name".
func (w *Workspace) CreateFolder(parentID, name string) (*graph.Node, error) {
	var created *graph.Node
	err := w.do("create_folder", func() (string, error) {
		n := graph.NewFolder(w.ids.Generate(), name)
		n.ModTime = w.clock()
		next, err := w.forest.Insert(parentID, n)
		if err != nil {
			return fmt.Sprintf("Error: could not create folder %s: %s", name, describe(err)), err
		}
		w.publish(next)
		created, _ = next.Find(n.ID)
		return "Created folder: " + name, nil
	})
	return created, err
}

// CreateFile adds an empty file and logs "Created file: name.ext". With
// AutoOpenCreated the new file also becomes the active document; that
// transition is part of the same action and adds no line of its own.
func (w *Workspace) CreateFile(parentID, name, ext string) (*graph.Node, error) {
	return w.createFile(parentID, name, ext, w.opts.AutoOpenCreated)
}

// AddFile is CreateFile that never changes the active document. Mounts
// use it so a file created on disk does not steal the editor.
func (w *Workspace) AddFile(parentID, name, ext string) (*graph.Node, error) {
	return w.createFile(parentID, name, ext, false)
}

func (w *Workspace) createFile(parentID, name, ext string, open bool) (*graph.Node, error) {
	var created *graph.Node
	err := w.do("create_file", func() (string, error) {
		n := graph.NewFile(w.ids.Generate(), name, ext)
		n.ModTime = w.clock()
		next, err := w.forest.Insert(parentID, n)
		if err != nil {
			return fmt.Sprintf("Error: could not create file %s: %s", displayName(name, ext), describe(err)), err
		}
		w.publish(next)
		created, _ = next.Find(n.ID)
		if open {
			_ = w.tracker.Open(created)
		}
		return "Created file: " + created.FileName(), nil
	})
	return created, err
}

// UpdateFileContent replaces a file's content. The tree is written first,
// then the active document mirrors it. Successful updates are silent
// unless LogContentUpdates is set; failures are always logged.
func (w *Workspace) UpdateFileContent(id, content string) error {
	return w.do("update_content", func() (string, error) {
		n, err := w.forest.Find(id)
		if err != nil {
			return fmt.Sprintf("Error: could not update %s: %s", id, describe(err)), fmt.Errorf("update %s: %w", id, err)
		}
		if n.IsFolder() {
			return fmt.Sprintf("Error: could not update %s: %s", n.Name, describe(graph.ErrNotAFile)), fmt.Errorf("update %s: %w", id, graph.ErrNotAFile)
		}

		next, err := w.forest.SetContentAt(id, graph.ContentBytes(content), w.clock())
		if err != nil {
			return fmt.Sprintf("Error: could not update %s: %s", n.FileName(), describe(err)), err
		}
		w.publish(next)
		updated, _ := next.Find(id)
		w.tracker.ContentUpdated(id, updated.Data)

		if !w.opts.LogContentUpdates {
			return "", nil
		}
		return "Updated " + n.FileName(), nil
	})
}

// ToggleFolder flips a folder between expanded and collapsed.
func (w *Workspace) ToggleFolder(id string) error {
	return w.do("toggle_folder", func() (string, error) {
		next, err := w.forest.Toggle(id)
		if err != nil {
			return fmt.Sprintf("Error: could not toggle %s: %s", w.label(id), describe(err)), err
		}
		w.publish(next)
		n, _ := next.Find(id)
		if n.Expanded {
			return "Expanded folder: " + n.Name, nil
		}
		return "Collapsed folder: " + n.Name, nil
	})
}

// Rename changes a node's name, and a file's extension. The id is kept,
// so an open document stays open under its new name.
func (w *Workspace) Rename(id, name, ext string) error {
	return w.do("rename", func() (string, error) {
		old, err := w.forest.Find(id)
		if err != nil {
			return fmt.Sprintf("Error: could not rename %s: %s", id, describe(err)), fmt.Errorf("rename %s: %w", id, err)
		}
		next, err := w.forest.RenameAt(id, name, ext, w.clock())
		if err != nil {
			return fmt.Sprintf("Error: could not rename %s: %s", old.FileName(), describe(err)), err
		}
		w.publish(next)
		renamed, _ := next.Find(id)
		w.tracker.NodeUpdated(renamed)
		return fmt.Sprintf("Renamed %s to %s", old.FileName(), renamed.FileName()), nil
	})
}

// DeleteFile removes a file. It rejects folders.
func (w *Workspace) DeleteFile(id string) error {
	return w.remove("delete_file", id, kindFile)
}

// DeleteFolder removes a folder and its whole subtree. It rejects files.
func (w *Workspace) DeleteFolder(id string) error {
	return w.remove("delete_folder", id, kindFolder)
}

// Delete removes a node of either kind.
func (w *Workspace) Delete(id string) error {
	return w.remove("delete", id, kindAny)
}

type kind int

const (
	kindAny kind = iota
	kindFile
	kindFolder
)

// remove clears the active document before the new forest is published,
// so no observer ever sees an active id that is missing from the tree.
// Deleting an absent id is a logged no-op that still reports ErrNotFound.
func (w *Workspace) remove(op, id string, want kind) error {
	return w.do(op, func() (string, error) {
		n, err := w.forest.Find(id)
		if err != nil {
			return fmt.Sprintf("Nothing to delete: %s not found", id), fmt.Errorf("delete %s: %w", id, err)
		}
		switch {
		case want == kindFile && n.IsFolder():
			return fmt.Sprintf("Error: could not delete %s: %s", n.Name, describe(graph.ErrNotAFile)), fmt.Errorf("delete %s: %w", id, graph.ErrNotAFile)
		case want == kindFolder && !n.IsFolder():
			return fmt.Sprintf("Error: could not delete %s: %s", n.FileName(), describe(graph.ErrNotAFolder)), fmt.Errorf("delete %s: %w", id, graph.ErrNotAFolder)
		}

		next, removed := w.forest.RemoveSubtree(id)
		w.tracker.FolderRemoved(removed)
		w.publish(next)

		if n.IsFolder() {
			if len(removed) > 1 {
				return fmt.Sprintf("Deleted folder: %s (%d item(s))", n.Name, len(removed)-1), nil
			}
			return "Deleted folder: " + n.Name, nil
		}
		return "Deleted file: " + n.FileName(), nil
	})
}

// label names id for a log line, falling back to the raw id.
func (w *Workspace) label(id string) string {
	if n, err := w.forest.Find(id); err == nil {
		return n.FileName()
	}
	return id
}

func displayName(name, ext string) string {
	if ext == "" {
		return name
	}
	return name + "." + ext
}
