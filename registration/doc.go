/*
Package registration registers hotkeys on subtensor subnets.

A proof-of-work registration first checks that the subnet exists and that the
hotkey does not already hold a slot. It then solves the registration puzzle
against the newest block and submits the solution. A solution anchored to a
block that fell out of the acceptance window is recomputed before it is
submitted; only submissions count against the attempt limit. A submission
rejected because the hotkey is already registered counts as success.

Burned registration skips the puzzle and pays the subnet's registration cost instead.
*/
package registration
