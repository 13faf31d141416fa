package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/pkg/errors"
)

// takes a save path and a variable number of strings and writes them to file separated by new lines
func WriteToFile(savePath string, content ...string) error {
	singleString := ""
	for i, c := range content {
		if i == 0 {
			singleString = c
			continue
		}
		singleString = fmt.Sprintf("%s\n%s", singleString, c)
	}

	return os.WriteFile(savePath, []byte(singleString), 0644)
}

func AppendToFile(savePath string, content ...string) error {
	f, err := os.OpenFile(savePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return err
	}

	defer f.Close()

	for _, s := range content {
		if _, err = f.WriteString(s + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// AppendJSON appends v as a single JSON line
func AppendJSON(savePath string, v interface{}) error {
	bs, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding json line")
	}
	return AppendToFile(savePath, string(bs))
}

// EnsureDirs creates the directories if absent, existing ones are left untouched
func EnsureDirs(dirs ...string) error {
	for _, d := range dirs {
		if _, err := os.Stat(d); err == nil {
			continue
		}
		if err := os.MkdirAll(d, os.ModePerm); err != nil {
			return errors.Wrapf(err, "creating %s", d)
		}
	}
	return nil
}

// EnsureParent creates the directory containing filePath
func EnsureParent(filePath string) error {
	return EnsureDirs(path.Dir(filePath))
}
