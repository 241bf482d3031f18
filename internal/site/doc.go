// Package site maps request targets onto a served directory tree.
//
// A Site is rooted at one directory. Resolve turns a URL path into a file
// or directory under that root and refuses anything that would leave it.
// RenderIndex writes an HTML listing of a directory.
//
//	s, err := site.New("./public")
//	if err != nil {
//	    return err
//	}
//	entry, err := s.Resolve("/docs/read%20me.txt")
//	switch {
//	case errors.Is(err, site.ErrNotFound):
//	    // 404
//	case entry.IsDir:
//	    _ = s.RenderIndex(w, entry.Path)
//	}
package site
