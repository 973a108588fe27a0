package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// SaveModel はモデルを gzip 圧縮した gob としてファイルに保存する。
// インターフェース型を含む場合は gob.Register で具象型を登録しておくこと。
//
//	var reg linear.Ridge
//	// ... 学習 ...
//	err := model.SaveModel(&reg, "ridge.gob.gz")
func SaveModel(model interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "save model")
	}
	if err := SaveModelToWriter(model, file); err != nil {
		file.Close()
		return err
	}
	return errors.Wrap(file.Close(), "save model")
}

// LoadModel はSaveModelで保存したファイルを読み込む
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "load model")
	}
	defer file.Close()
	return LoadModelFromReader(model, file)
}

// SaveGob writes any gob-encodable value (dataset shards, split bundles) to
// filename with the same gzip framing as SaveModel.
func SaveGob(v interface{}, filename string) error { return SaveModel(v, filename) }

// LoadGob reads a file written by SaveGob.
func LoadGob(v interface{}, filename string) error { return LoadModel(v, filename) }

// SaveModelToWriter writes a gzip-compressed gob stream to w.
func SaveModelToWriter(model interface{}, w io.Writer) error {
	zw := gzip.NewWriter(w)
	if err := gob.NewEncoder(zw).Encode(model); err != nil {
		zw.Close()
		return errors.Wrap(err, "failed to encode model")
	}
	return errors.Wrap(zw.Close(), "failed to flush model")
}

// LoadModelFromReader reads a stream written by SaveModelToWriter.
func LoadModelFromReader(model interface{}, r io.Reader) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "failed to open gzip stream")
	}
	defer zr.Close()
	if err := gob.NewDecoder(zr).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
