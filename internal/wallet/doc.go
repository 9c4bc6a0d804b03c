// Package wallet загружает аккаунты из файла "address,privatekey".
package wallet
