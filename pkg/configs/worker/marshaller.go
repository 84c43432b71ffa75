package worker

import (
	"os"

	"gopkg.in/yaml.v3"
)

// load worker config from a file.
//
// args:
//   - filepath: filepath refers a config file.
//
// returns *WorkerConfig, error:
//
//	When loading success, returns `(*WorkerConfig, nil)`.
//	Otherwise, returns `(nil, error)`.
func LoadWorkerConfig(filepath string) (*WorkerConfig, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

func Unmarshal(conf []byte) (out *WorkerConfig, err error) {
	var _out *WorkerConfigMarshall
	err = yaml.Unmarshal(conf, &_out)
	if err != nil {
		return nil, err
	}
	out = TrySeal(_out)
	return out, nil
}
