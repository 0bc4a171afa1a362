package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

// SaveModel はモデルを gob 形式でファイルに保存する
//
// 同じディレクトリの一時ファイルに書き込んでから rename するため、
// 途中で失敗しても既存のファイルは壊れない。親ディレクトリは必要に応じて作成する。
//
//	if err := model.SaveModel(artifact, "models/attrition_rf.gob"); err != nil { ... }
func SaveModel(model interface{}, filename string) (err error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewArtifactError("save", filename, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".*.tmp")
	if err != nil {
		return errors.NewArtifactError("save", filename, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = SaveModelToWriter(model, tmp); err != nil {
		_ = tmp.Close()
		return errors.NewArtifactError("save", filename, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.NewArtifactError("save", filename, err)
	}
	if err = tmp.Close(); err != nil {
		return errors.NewArtifactError("save", filename, err)
	}
	if err = os.Rename(tmp.Name(), filename); err != nil {
		return errors.NewArtifactError("save", filename, err)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む
//
// パラメータ:
//   - model: 読み込み先のポインタ
//   - filename: 読み込み元のファイルパス
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.NewArtifactError("load", filename, err)
	}
	defer file.Close()

	if err := LoadModelFromReader(model, file); err != nil {
		return errors.NewArtifactError("load", filename, err)
	}
	return nil
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
