// Package config описывает YAML-конфигурацию демона и её валидацию.
package config
