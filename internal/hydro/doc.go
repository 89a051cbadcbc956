// Package hydro is the query layer for the hydroponics dashboard.
//
// It reads sensor readings, actuator settings, user credentials and
// notifications from the relational store, and writes dispense amounts back.
// Every statement is parameterized; user input never reaches the SQL text.
//
// Sensor values are rounded to two decimals on the way out so that every
// driver produces the same JSON. NULL columns are reported as nil.
package hydro
