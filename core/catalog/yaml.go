package catalog

import (
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the document read by the catalog importer.
//
//	courses:
//	  - slug: go-basics
//	    title: Go Basics
//	    modules: [...]
//	modules:
//	  - slug: git-101
//	    title: Git 101
//	    sub_modules: [...]
type File struct {
	Courses []NewCourse `yaml:"courses"`
	Modules []NewModule `yaml:"modules"`
}

// DecodeYAML reads a catalog File.
func DecodeYAML(r io.Reader) (File, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return File{}, errors.New("empty catalog file")
		}
		return File{}, errors.Wrap(err, "decoding catalog file")
	}
	if len(file.Courses) == 0 && len(file.Modules) == 0 {
		return File{}, errors.New("catalog file has no courses nor modules")
	}
	return file, nil
}
