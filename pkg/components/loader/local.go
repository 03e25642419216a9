package loader

import (
	"bufio"
	"bytes"
	"io"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
	"k8s.io/klog/v2"

	"stanclient/pkg/components"
)

const (
	yamlSeparator    = "\n---"
	componentKind    = "Component"
	subscriptionKind = "Subscription"
	uuidPlaceholder  = "{uuid}"
)

type yamlDocument struct {
	Kind     string   `yaml:"kind,omitempty"`
	Spec     yamlSpec `yaml:"spec"`
	Metadata metaData `yaml:"metadata"`
	Scopes   []string `yaml:"scopes"`
}

type metaData struct {
	Name string `yaml:"name"`
}

type yamlSpec struct {
	Type     string         `yaml:"type"`
	Version  string         `yaml:"version"`
	PubSub   string         `yaml:"pubsub"`
	Topic    string         `yaml:"topic"`
	Queue    string         `yaml:"queue"`
	Metadata []metadataItem `yaml:"metadata"`
}

type metadataItem struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value,omitempty"`
}

// LoadLocalComponents reads every yaml file of componentsPath. Documents of
// other kinds are skipped, broken documents are logged and skipped.
func LoadLocalComponents(componentsPath string) ComponentsLoader {
	return func() (components.Manifest, error) {
		var manifest components.Manifest

		files, err := ioutil.ReadDir(componentsPath)
		if err != nil {
			return manifest, errors.Wrapf(err, "reading components directory %s", componentsPath)
		}

		for _, file := range files {
			if file.IsDir() || !isYaml(file.Name()) {
				continue
			}
			m, err := loadComponentsFromFile(filepath.Join(componentsPath, file.Name()))
			if err != nil {
				klog.ErrorS(err, "Error loading components file", "file", file.Name())
				continue
			}
			manifest.Components = append(manifest.Components, m.Components...)
			manifest.Subscriptions = append(manifest.Subscriptions, m.Subscriptions...)
		}

		klog.InfoS("Loaded local components", "path", componentsPath,
			"components", len(manifest.Components), "subscriptions", len(manifest.Subscriptions))
		return manifest, nil
	}
}

func loadComponentsFromFile(path string) (components.Manifest, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return components.Manifest{}, err
	}
	manifest, errs := decodeYaml(b)
	for _, err := range errs {
		klog.ErrorS(err, "Error parsing components yaml document", "file", path)
	}
	return manifest, nil
}

func isYaml(fileName string) bool {
	extension := strings.ToLower(filepath.Ext(fileName))
	return extension == ".yaml" || extension == ".yml"
}

func decodeYaml(b []byte) (manifest components.Manifest, errs []error) {
	scanner := bufio.NewScanner(bytes.NewReader(b))
	scanner.Split(splitYamlDoc)

	for {
		var doc yamlDocument
		err := decode(scanner, &doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}

		switch doc.Kind {
		case componentKind:
			manifest.Components = append(manifest.Components, components.Spec{
				Name:     doc.Metadata.Name,
				Type:     doc.Spec.Type,
				Version:  doc.Spec.Version,
				Metadata: toProperties(doc.Spec.Metadata),
				Scopes:   doc.Scopes,
			})
		case subscriptionKind:
			if doc.Spec.PubSub == "" || doc.Spec.Topic == "" {
				errs = append(errs, errors.Errorf("subscription %q needs both pubsub and topic", doc.Metadata.Name))
				continue
			}
			manifest.Subscriptions = append(manifest.Subscriptions, components.SubscriptionSpec{
				Name:       doc.Metadata.Name,
				PubsubName: doc.Spec.PubSub,
				Topic:      doc.Spec.Topic,
				Queue:      doc.Spec.Queue,
				Metadata:   toProperties(doc.Spec.Metadata),
			})
		}
	}

	return manifest, errs
}

func decode(scanner *bufio.Scanner, c interface{}) error {
	if scanner.Scan() {
		return yaml.Unmarshal(scanner.Bytes(), c)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

// splitYamlDoc is a bufio.SplitFunc yielding one yaml document per token.
func splitYamlDoc(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	sep := len(yamlSeparator)
	if i := bytes.Index(data, []byte(yamlSeparator)); i >= 0 {
		i += sep
		after := data[i:]

		if len(after) == 0 {
			if atEOF {
				return len(data), data[:len(data)-sep], nil
			}
			return 0, nil, nil
		}
		if j := bytes.IndexByte(after, '\n'); j >= 0 {
			return i + j + 1, data[0 : i-sep], nil
		}
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// toProperties flattens metadata items, giving each {uuid} placeholder a
// fresh id.
func toProperties(items []metadataItem) map[string]string {
	properties := map[string]string{}
	for _, c := range items {
		val := c.Value
		for strings.Contains(val, uuidPlaceholder) {
			val = strings.Replace(val, uuidPlaceholder, uuid.New().String(), 1)
		}
		properties[c.Name] = val
	}
	return properties
}
